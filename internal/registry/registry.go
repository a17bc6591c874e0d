// Package registry holds the configured remote connections and their
// runtime status.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/store"
	"logscope/internal/util/logx"
)

type Registry struct {
	mu    sync.RWMutex
	conns []model.RemoteConnection
	store store.Store
}

// New loads persisted connections from st, all in the Disconnected state.
func New(st store.Store) (*Registry, error) {
	if st == nil {
		st = store.NewMemoryStore()
	}
	r := &Registry{store: st}
	var saved []model.RemoteConnection
	if _, err := st.Load(store.KeyConnections, &saved); err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	for _, c := range saved {
		c.ResetRuntime()
		r.conns = append(r.conns, c)
	}
	return r, nil
}

func validate(c model.RemoteConnection) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.NewValidationError("name", "name is required")
	}
	if !c.Kind.Valid() {
		return apperr.NewValidationError("kind", fmt.Sprintf("unknown transport kind %q", c.Kind))
	}
	if c.Kind == model.KindLocalFile {
		if strings.TrimSpace(c.TargetPath) == "" {
			return apperr.NewValidationError("targetPath", "file path is required")
		}
		return nil
	}
	if strings.TrimSpace(c.Host) == "" {
		return apperr.NewValidationError("host", "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return apperr.NewValidationError("port", "port out of range")
	}
	return nil
}

// DefaultPort is the port assumed when a record leaves it unset.
func DefaultPort(k model.TransportKind) int {
	switch k {
	case model.KindShellSession:
		return 22
	case model.KindMessageQueue:
		return 6379
	case model.KindKeyValueStore:
		return 3320
	case model.KindRelationalStore:
		return 4001
	case model.KindCustom:
		return 80
	}
	return 0
}

func (r *Registry) Add(c model.RemoteConnection) (model.RemoteConnection, error) {
	if err := validate(c); err != nil {
		return model.RemoteConnection{}, err
	}
	c.ID = uuid.NewString()
	if c.Port == 0 {
		c.Port = DefaultPort(c.Kind)
	}
	c.ResetRuntime()

	r.mu.Lock()
	defer r.mu.Unlock()
	next := append(r.clone(), c)
	if err := r.persist(next); err != nil {
		return model.RemoteConnection{}, err
	}
	r.conns = next
	logx.Infof("registry: added %q (%s, %s)", c.Name, c.Kind, c.ID)
	return c, nil
}

// Update replaces the identity fields of id. Runtime fields are kept.
func (r *Registry) Update(id string, c model.RemoteConnection) (model.RemoteConnection, error) {
	if err := validate(c); err != nil {
		return model.RemoteConnection{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.RemoteConnection{}, apperr.NewNotFoundError("connection", id)
	}
	cur := r.conns[i]
	if c.Port == 0 {
		c.Port = DefaultPort(c.Kind)
	}
	c.ID = id
	c.Status, c.Monitoring, c.LastError, c.ResourcePath = cur.Status, cur.Monitoring, cur.LastError, cur.ResourcePath
	next := r.clone()
	next[i] = c
	if err := r.persist(next); err != nil {
		return model.RemoteConnection{}, err
	}
	r.conns = next
	return c, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return apperr.NewNotFoundError("connection", id)
	}
	next := append(r.clone()[:i:i], r.conns[i+1:]...)
	if err := r.persist(next); err != nil {
		return err
	}
	r.conns = next
	logx.Infof("registry: deleted %s", id)
	return nil
}

func (r *Registry) Get(id string) (model.RemoteConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.conns[i], true
	}
	return model.RemoteConnection{}, false
}

func (r *Registry) FindByName(name string) (model.RemoteConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return model.RemoteConnection{}, false
}

// FindByResourcePath returns the id of the live connection streaming path.
func (r *Registry) FindByResourcePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.Status != model.StatusConnecting && c.Status != model.StatusConnected {
			continue
		}
		if c.ResourcePath == path {
			return c.ID, true
		}
	}
	return "", false
}

// List returns the connections whose name, host or kind contains filter,
// ignoring case. An empty filter returns everything.
func (r *Registry) List(filter string) []model.RemoteConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := strings.ToLower(strings.TrimSpace(filter))
	out := make([]model.RemoteConnection, 0, len(r.conns))
	for _, c := range r.conns {
		if f == "" ||
			strings.Contains(strings.ToLower(c.Name), f) ||
			strings.Contains(strings.ToLower(c.Host), f) ||
			strings.Contains(strings.ToLower(string(c.Kind)), f) {
			out = append(out, c)
		}
	}
	return out
}

// SetRuntime applies fn to the runtime fields of id. Identity changes made by
// fn are discarded. Nothing is persisted.
func (r *Registry) SetRuntime(id string, fn func(*model.RemoteConnection)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	c := r.conns[i]
	fn(&c)
	r.conns[i].Status = c.Status
	r.conns[i].Monitoring = c.Monitoring
	r.conns[i].LastError = c.LastError
	r.conns[i].ResourcePath = c.ResourcePath
	return true
}

func (r *Registry) SetStatus(id string, s model.Status, lastErr string) bool {
	return r.SetRuntime(id, func(c *model.RemoteConnection) {
		c.Status = s
		c.LastError = lastErr
	})
}

func (r *Registry) SetMonitoring(id string, on bool) bool {
	return r.SetRuntime(id, func(c *model.RemoteConnection) { c.Monitoring = on })
}

func (r *Registry) SetResourcePath(id, path string) bool {
	return r.SetRuntime(id, func(c *model.RemoteConnection) { c.ResourcePath = path })
}

func (r *Registry) persist(conns []model.RemoteConnection) error {
	if err := r.store.Save(store.KeyConnections, conns); err != nil {
		return fmt.Errorf("save connections: %w", err)
	}
	return nil
}

func (r *Registry) clone() []model.RemoteConnection {
	out := make([]model.RemoteConnection, len(r.conns))
	copy(out, r.conns)
	return out
}

func (r *Registry) indexOf(id string) int {
	for i, c := range r.conns {
		if c.ID == id {
			return i
		}
	}
	return -1
}
