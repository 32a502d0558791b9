// Package session implements the Session Manager & Commit Pipeline (spec
// §4.6): message append against the URI filesystem, session lifecycle, and
// the close-session pipeline that turns a closed timeline into layers,
// extracted category memories, and vector-indexed entries.
package session

import "time"

// Status is a session's lifecycle state.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Session is the durable record written to a thread's .session.json.
type Session struct {
	ThreadID     string    `json:"thread_id"`
	UserID       string    `json:"user_id,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	Status       Status    `json:"status"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
