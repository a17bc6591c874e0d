package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/store"
)

func custom() model.LogFormatDefinition {
	return model.LogFormatDefinition{
		Name:    "bracket",
		Pattern: `^(\d{4}-\d{2}-\d{2})\s\[(\w+)\]\s(.*)$`,
		Groups:  model.GroupRoles{Timestamp: 1, Level: 2, Message: 3},
		Sample:  "2024-01-01 [ERROR] disk full",
	}
}

func TestBuiltinsMatchTheirSamples(t *testing.T) {
	for _, d := range Builtins() {
		require.NoError(t, Validate(d), d.ID)
		res := Test(d, d.Sample)
		assert.True(t, res.OK, "%s: %s", d.ID, res.Reason)
	}
}

func TestTestExtractsFields(t *testing.T) {
	res := Test(custom(), "2024-01-01 [ERROR] disk full")
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, map[string]string{
		"timestamp": "2024-01-01",
		"level":     "ERROR",
		"message":   "disk full",
	}, res.Fields)

	res = Test(custom(), "no match here")
	assert.False(t, res.OK)
	assert.Equal(t, "pattern does not match sample", res.Reason)

	bad := custom()
	bad.Pattern = "(["
	res = Test(bad, "x")
	assert.False(t, res.OK)
	assert.True(t, apperr.IsPattern(res.Err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.LogFormatDefinition)
		field   string
		pattern bool
	}{
		{name: "missing name", mutate: func(d *model.LogFormatDefinition) { d.Name = " " }, field: "name"},
		{name: "missing sample", mutate: func(d *model.LogFormatDefinition) { d.Sample = "" }, field: "sample"},
		{name: "missing level", mutate: func(d *model.LogFormatDefinition) { d.Groups.Level = 0 }, field: "groups.level"},
		{name: "missing message", mutate: func(d *model.LogFormatDefinition) { d.Groups.Message = 0 }, field: "groups.message"},
		{name: "index too large", mutate: func(d *model.LogFormatDefinition) { d.Groups.Logger = 4 }, field: "groups.logger"},
		{name: "duplicate index", mutate: func(d *model.LogFormatDefinition) { d.Groups.TraceID = 3 }, field: "groups.traceId"},
		{name: "bad regex", mutate: func(d *model.LogFormatDefinition) { d.Pattern = "(a" }, pattern: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := custom()
			tt.mutate(&d)
			err := Validate(d)
			require.Error(t, err)
			if tt.pattern {
				assert.True(t, apperr.IsPattern(err))
				return
			}
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestDeleteRules(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	err = r.Delete("spring-boot")
	assert.True(t, apperr.IsValidation(err))
	_, ok := r.Get("spring-boot")
	assert.True(t, ok, "builtin must survive delete")

	id, err := r.Add(custom())
	require.NoError(t, err)
	require.NoError(t, r.SetActive(id))
	require.NoError(t, r.Delete(id))
	assert.Equal(t, "", r.ActiveID())
	_, ok = r.Get(id)
	assert.False(t, ok)

	assert.True(t, apperr.IsNotFound(r.Delete(id)))
}

func TestDeleteInactiveKeepsSelection(t *testing.T) {
	r, _ := New(nil)
	id, err := r.Add(custom())
	require.NoError(t, err)
	require.NoError(t, r.SetActive("standard-log"))
	require.NoError(t, r.Delete(id))
	assert.Equal(t, "standard-log", r.ActiveID())
}

func TestUpdate(t *testing.T) {
	r, _ := New(nil)
	id, err := r.Add(custom())
	require.NoError(t, err)

	name := "renamed"
	d, err := r.Update(id, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", d.Name)
	assert.Equal(t, custom().Pattern, d.Pattern)

	badPattern := "(("
	_, err = r.Update(id, Patch{Pattern: &badPattern})
	assert.True(t, apperr.IsPattern(err))
	got, _ := r.Get(id)
	assert.Equal(t, custom().Pattern, got.Pattern, "failed update must not mutate")

	_, err = r.Update("standard-log", Patch{Name: &name})
	assert.True(t, apperr.IsValidation(err))
}

func TestPersistenceRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	r, err := New(st)
	require.NoError(t, err)
	id, err := r.Add(custom())
	require.NoError(t, err)
	require.NoError(t, r.SetActive(id))

	again, err := New(st)
	require.NoError(t, err)
	assert.Len(t, again.List(), len(Builtins())+1)
	assert.Equal(t, id, again.ActiveID())
	active, ok := again.Active()
	require.True(t, ok)
	assert.Equal(t, "bracket", active.Name)

	byName, ok := again.Lookup("BRACKET")
	require.True(t, ok)
	assert.Equal(t, id, byName.ID)
}

func TestSetActiveUnknown(t *testing.T) {
	r, _ := New(nil)
	assert.True(t, apperr.IsNotFound(r.SetActive("nope")))
	require.NoError(t, r.SetActive(""))
}

func TestJSONFormatValidateAndTest(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	def, ok := r.Get("json")
	require.True(t, ok)
	require.True(t, def.IsJSON())

	res := Test(def, `{"ts":"2024-01-01T10:00:00Z","lvl":"warn","msg":"slow","service":"api"}`)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, map[string]string{
		"timestamp": "2024-01-01T10:00:00Z",
		"level":     "WARN",
		"message":   "slow",
		"logger":    "api",
	}, res.Fields)

	res = Test(def, "plain text")
	assert.False(t, res.OK)

	own := model.LogFormatDefinition{Name: "ndjson", Kind: model.FormatKindJSON, Sample: `{"msg":"hi"}`}
	require.NoError(t, Validate(own))
	own.Sample = "nope"
	assert.True(t, apperr.IsValidation(Validate(own)))

	odd := custom()
	odd.Kind = "xml"
	assert.True(t, apperr.IsValidation(Validate(odd)))
}

func TestJSONFormatSelectable(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, r.SetActive("json"))
	def, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, model.FormatKindJSON, def.Kind)
}
