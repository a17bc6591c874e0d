package model

import (
	"strings"
	"time"
)

type TransportKind string

const (
	KindShellSession    TransportKind = "shell-session"
	KindMessageQueue    TransportKind = "message-queue"
	KindSearchIndex     TransportKind = "search-index"
	KindKeyValueStore   TransportKind = "key-value-store"
	KindDocumentStore   TransportKind = "document-store"
	KindRelationalStore TransportKind = "relational-store"
	KindCustom          TransportKind = "custom"
	KindLocalFile       TransportKind = "local-file"
)

var Kinds = []TransportKind{
	KindShellSession, KindMessageQueue, KindSearchIndex, KindKeyValueStore,
	KindDocumentStore, KindRelationalStore, KindCustom, KindLocalFile,
}

func (k TransportKind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthKey      AuthType = "key"
)

type Credential struct {
	Username   string   `json:"username,omitempty"`
	AuthType   AuthType `json:"authType,omitempty"`
	Password   string   `json:"password,omitempty"`
	KeyFile    string   `json:"keyFile,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
}

// RemoteConnection is a configured log source. Identity fields are persisted;
// Status, Monitoring, LastError and ResourcePath are runtime-only and owned by
// the session manager.
type RemoteConnection struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Kind       TransportKind `json:"kind"`
	Host       string        `json:"host,omitempty"`
	Port       int           `json:"port,omitempty"`
	Credential Credential    `json:"credential"`
	TargetPath string        `json:"targetPath,omitempty"`

	Status       Status `json:"-"`
	Monitoring   bool   `json:"-"`
	LastError    string `json:"-"`
	ResourcePath string `json:"-"`
}

// ResetRuntime puts a freshly loaded record back into the Disconnected state.
func (c *RemoteConnection) ResetRuntime() {
	c.Status = StatusDisconnected
	c.Monitoring = false
	c.LastError = ""
	c.ResourcePath = ""
}

// GroupRoles maps semantic roles to 1-based capture group indexes. Zero means
// the role is not configured.
type GroupRoles struct {
	Timestamp int `json:"timestamp,omitempty"`
	Level     int `json:"level"`
	Message   int `json:"message"`
	TraceID   int `json:"traceId,omitempty"`
	Logger    int `json:"logger,omitempty"`
}

// Named returns the configured roles keyed by role name, skipping unset ones.
func (g GroupRoles) Named() map[string]int {
	out := map[string]int{}
	for name, idx := range map[string]int{
		"timestamp": g.Timestamp,
		"level":     g.Level,
		"message":   g.Message,
		"traceId":   g.TraceID,
		"logger":    g.Logger,
	} {
		if idx > 0 {
			out[name] = idx
		}
	}
	return out
}

// FormatKindJSON marks a definition parsed as one JSON object per line.
// Such definitions need no capture groups; Pattern only gates detection.
const FormatKindJSON = "json"

type LogFormatDefinition struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Kind    string     `json:"kind,omitempty"`
	Pattern string     `json:"pattern"`
	Groups  GroupRoles `json:"groups"`
	Sample  string     `json:"sample"`
	Builtin bool       `json:"builtin,omitempty"`
}

func (d LogFormatDefinition) IsJSON() bool { return d.Kind == FormatKindJSON }

type LogEntry struct {
	Timestamp    string     `json:"timestamp,omitempty"`
	Time         *time.Time `json:"time,omitempty"`
	Level        string     `json:"level,omitempty"`
	TraceID      string     `json:"traceId,omitempty"`
	Logger       string     `json:"logger,omitempty"`
	Content      string     `json:"content"`
	Raw          string     `json:"raw"`
	Source       string     `json:"source,omitempty"`
	Continuation int        `json:"continuation,omitempty"`
}

// Lines returns the raw text split back into physical lines.
func (e LogEntry) Lines() []string { return strings.Split(e.Raw, "\n") }
