package session

import (
	"fmt"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message about a connection.
type Notice struct {
	Level        NoticeLevel
	ConnectionID string
	Name         string
	Message      string
	At           time.Time
}

func (n Notice) String() string {
	if n.Name == "" {
		return n.Message
	}
	return fmt.Sprintf("%s: %s", n.Name, n.Message)
}
