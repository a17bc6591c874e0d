package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/store"
)

func sshConn(name, host string) model.RemoteConnection {
	return model.RemoteConnection{
		Name:       name,
		Kind:       model.KindShellSession,
		Host:       host,
		Credential: model.Credential{Username: "deploy", AuthType: model.AuthPassword, Password: "pw"},
		TargetPath: "/var/log/app.log",
	}
}

func TestAddValidates(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		conn  model.RemoteConnection
		field string
	}{
		{"no name", sshConn("", "h"), "name"},
		{"no host", sshConn("web", ""), "host"},
		{"bad kind", model.RemoteConnection{Name: "x", Kind: "ftp", Host: "h"}, "kind"},
		{"file without path", model.RemoteConnection{Name: "x", Kind: model.KindLocalFile}, "targetPath"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(tt.conn)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, r.List(""))
}

func TestAddAssignsIDAndDefaults(t *testing.T) {
	r, _ := New(nil)
	a, err := r.Add(sshConn("web", "10.0.0.1"))
	require.NoError(t, err)
	b, err := r.Add(sshConn("web", "10.0.0.1"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 22, a.Port)
	assert.Equal(t, model.StatusDisconnected, a.Status)
}

func TestListFilter(t *testing.T) {
	r, _ := New(nil)
	_, _ = r.Add(sshConn("Web-1", "10.0.0.1"))
	_, _ = r.Add(sshConn("db", "db.internal"))
	_, _ = r.Add(model.RemoteConnection{Name: "queue", Kind: model.KindMessageQueue, Host: "cache"})

	assert.Len(t, r.List(""), 3)
	assert.Len(t, r.List("WEB"), 1)
	assert.Len(t, r.List("internal"), 1)
	assert.Len(t, r.List("message"), 1)
	assert.Len(t, r.List("shell"), 2)
	assert.Empty(t, r.List("nothing"))
}

func TestUpdateKeepsRuntime(t *testing.T) {
	r, _ := New(nil)
	c, _ := r.Add(sshConn("web", "h1"))
	r.SetStatus(c.ID, model.StatusConnected, "")
	r.SetResourcePath(c.ID, "/var/log/app.log")

	upd := sshConn("web-renamed", "h2")
	got, err := r.Update(c.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "web-renamed", got.Name)
	assert.Equal(t, model.StatusConnected, got.Status)
	assert.Equal(t, "/var/log/app.log", got.ResourcePath)

	_, err = r.Update("missing", upd)
	assert.True(t, apperr.IsNotFound(err))
}

func TestFindByResourcePathOnlyLive(t *testing.T) {
	r, _ := New(nil)
	c, _ := r.Add(sshConn("web", "h1"))
	r.SetResourcePath(c.ID, "/var/log/app.log")
	_, ok := r.FindByResourcePath("/var/log/app.log")
	assert.False(t, ok, "disconnected connections do not own paths")

	r.SetStatus(c.ID, model.StatusConnected, "")
	id, ok := r.FindByResourcePath("/var/log/app.log")
	assert.True(t, ok)
	assert.Equal(t, c.ID, id)
}

func TestPersistenceResetsRuntime(t *testing.T) {
	st := store.NewMemoryStore()
	r, _ := New(st)
	c, _ := r.Add(sshConn("web", "h1"))
	r.SetStatus(c.ID, model.StatusError, "boom")
	d, _ := r.Add(sshConn("db", "h2"))
	found, ok := r.FindByName("DB")
	require.True(t, ok)
	assert.Equal(t, d.ID, found.ID)
	require.NoError(t, r.Delete(d.ID))

	again, err := New(st)
	require.NoError(t, err)
	list := again.List("")
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, model.StatusDisconnected, list[0].Status)
	assert.Empty(t, list[0].LastError)
	assert.Equal(t, "pw", list[0].Credential.Password)
}

func TestSetRuntimeIgnoresIdentity(t *testing.T) {
	r, _ := New(nil)
	c, _ := r.Add(sshConn("web", "h1"))
	ok := r.SetRuntime(c.ID, func(rc *model.RemoteConnection) {
		rc.Name = "hijack"
		rc.Monitoring = true
	})
	require.True(t, ok)
	got, _ := r.Get(c.ID)
	assert.Equal(t, "web", got.Name)
	assert.True(t, got.Monitoring)
	assert.False(t, r.SetRuntime("missing", func(*model.RemoteConnection) {}))
}
