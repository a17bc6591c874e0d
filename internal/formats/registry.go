// Package formats holds the built-in and user-defined log format definitions
// and the currently active selection.
package formats

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/parse"
	"logscope/internal/store"
	"logscope/internal/util/logx"
)

type persisted struct {
	Formats  []model.LogFormatDefinition `json:"formats"`
	ActiveID string                      `json:"activeFormatId,omitempty"`
}

type Registry struct {
	mu       sync.RWMutex
	defs     []model.LogFormatDefinition
	activeID string
	store    store.Store
}

// New builds a registry with the built-ins and any custom formats found in st.
// A nil store keeps everything in memory.
func New(st store.Store) (*Registry, error) {
	if st == nil {
		st = store.NewMemoryStore()
	}
	r := &Registry{defs: Builtins(), store: st}

	var p persisted
	ok, err := st.Load(store.KeyFormats, &p)
	if err != nil {
		return nil, fmt.Errorf("load formats: %w", err)
	}
	if ok {
		for _, d := range p.Formats {
			if d.Builtin || r.indexOf(d.ID) >= 0 {
				continue
			}
			if err := Validate(d); err != nil {
				logx.Warnf("formats: skipping stored format %q: %v", d.Name, err)
				continue
			}
			r.defs = append(r.defs, d)
		}
		if r.indexOf(p.ActiveID) >= 0 {
			r.activeID = p.ActiveID
		}
	}
	return r, nil
}

// Patch carries the fields to merge in Update; nil fields are left unchanged.
type Patch struct {
	Name    *string
	Pattern *string
	Sample  *string
	Groups  *model.GroupRoles
}

func (r *Registry) Add(def model.LogFormatDefinition) (string, error) {
	def.Builtin = false
	if err := Validate(def); err != nil {
		return "", err
	}
	def.ID = uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	next := append(r.clone(), def)
	if err := r.commit(next, r.activeID); err != nil {
		return "", err
	}
	logx.Infof("formats: added %q (%s)", def.Name, def.ID)
	return def.ID, nil
}

func (r *Registry) Update(id string, p Patch) (model.LogFormatDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.LogFormatDefinition{}, apperr.NewNotFoundError("format", id)
	}
	if r.defs[i].Builtin {
		return model.LogFormatDefinition{}, apperr.NewValidationError("id", "built-in formats cannot be edited")
	}
	def := r.defs[i]
	if p.Name != nil {
		def.Name = *p.Name
	}
	if p.Pattern != nil {
		def.Pattern = *p.Pattern
	}
	if p.Sample != nil {
		def.Sample = *p.Sample
	}
	if p.Groups != nil {
		def.Groups = *p.Groups
	}
	if err := Validate(def); err != nil {
		return model.LogFormatDefinition{}, err
	}
	next := r.clone()
	next[i] = def
	if err := r.commit(next, r.activeID); err != nil {
		return model.LogFormatDefinition{}, err
	}
	return def, nil
}

// Delete removes a custom format. Deleting the active format clears the
// active selection.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return apperr.NewNotFoundError("format", id)
	}
	if r.defs[i].Builtin {
		return apperr.NewValidationError("id", "built-in formats cannot be deleted")
	}
	next := append(r.clone()[:i:i], r.defs[i+1:]...)
	active := r.activeID
	if active == id {
		active = ""
	}
	if err := r.commit(next, active); err != nil {
		return err
	}
	logx.Infof("formats: deleted %s", id)
	return nil
}

func (r *Registry) Get(id string) (model.LogFormatDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.defs[i], true
	}
	return model.LogFormatDefinition{}, false
}

// Lookup resolves an id or, failing that, a case-insensitive name.
func (r *Registry) Lookup(idOrName string) (model.LogFormatDefinition, bool) {
	if d, ok := r.Get(idOrName); ok {
		return d, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.defs {
		if strings.EqualFold(d.Name, idOrName) {
			return d, true
		}
	}
	return model.LogFormatDefinition{}, false
}

func (r *Registry) List() []model.LogFormatDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clone()
}

// SetActive selects the format used for parsing. An empty id clears it.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" && r.indexOf(id) < 0 {
		return apperr.NewNotFoundError("format", id)
	}
	if id == r.activeID {
		return nil
	}
	return r.commit(r.defs, id)
}

func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

func (r *Registry) Active() (model.LogFormatDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(r.activeID); i >= 0 {
		return r.defs[i], true
	}
	return model.LogFormatDefinition{}, false
}

// commit persists the custom formats and active id, then swaps them in.
// Callers hold r.mu.
func (r *Registry) commit(defs []model.LogFormatDefinition, activeID string) error {
	custom := make([]model.LogFormatDefinition, 0, len(defs))
	for _, d := range defs {
		if !d.Builtin {
			custom = append(custom, d)
		}
	}
	if err := r.store.Save(store.KeyFormats, persisted{Formats: custom, ActiveID: activeID}); err != nil {
		return fmt.Errorf("save formats: %w", err)
	}
	r.defs = defs
	r.activeID = activeID
	return nil
}

func (r *Registry) clone() []model.LogFormatDefinition {
	out := make([]model.LogFormatDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, d := range r.defs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks the fields required to save a definition. Two roles bound
// to the same capture group are rejected. JSON definitions carry no groups.
func Validate(def model.LogFormatDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return apperr.NewValidationError("name", "name is required")
	}
	switch def.Kind {
	case "":
	case model.FormatKindJSON:
		return validateJSON(def)
	default:
		return apperr.NewValidationError("kind", fmt.Sprintf("unknown format kind %q", def.Kind))
	}
	if strings.TrimSpace(def.Pattern) == "" {
		return apperr.NewValidationError("pattern", "pattern is required")
	}
	if strings.TrimSpace(def.Sample) == "" {
		return apperr.NewValidationError("sample", "sample is required")
	}
	if def.Groups.Level <= 0 {
		return apperr.NewValidationError("groups.level", "level group is required")
	}
	if def.Groups.Message <= 0 {
		return apperr.NewValidationError("groups.message", "message group is required")
	}
	re, err := parse.Compile(def.Pattern)
	if err != nil {
		return err
	}
	return validateRoles(def.Groups, re.NumSubexp())
}

func validateJSON(def model.LogFormatDefinition) error {
	if strings.TrimSpace(def.Sample) == "" {
		return apperr.NewValidationError("sample", "sample is required")
	}
	if def.Pattern != "" {
		if _, err := parse.Compile(def.Pattern); err != nil {
			return err
		}
	}
	if _, ok := (parse.JSONParser{}).ParseLine(def.Sample); !ok {
		return apperr.NewValidationError("sample", "sample is not a JSON object")
	}
	return nil
}

func validateRoles(g model.GroupRoles, groups int) error {
	seen := map[int]string{}
	for _, role := range []struct {
		name string
		idx  int
	}{
		{"timestamp", g.Timestamp},
		{"level", g.Level},
		{"message", g.Message},
		{"traceId", g.TraceID},
		{"logger", g.Logger},
	} {
		if role.idx < 0 {
			return apperr.NewValidationError("groups."+role.name, "group index must be positive")
		}
		if role.idx == 0 {
			continue
		}
		if role.idx > groups {
			return apperr.NewValidationError("groups."+role.name,
				fmt.Sprintf("group %d exceeds the %d capture groups in the pattern", role.idx, groups))
		}
		if other, dup := seen[role.idx]; dup {
			return apperr.NewValidationError("groups."+role.name,
				fmt.Sprintf("group %d is already used by %s", role.idx, other))
		}
		seen[role.idx] = role.name
	}
	return nil
}
