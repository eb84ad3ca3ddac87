package domain

import "time"

// Matcher turns a free-text query into an answer. Implementations must be
// total and free of side effects.
type Matcher interface {
	Match(query string) Answer
}

// Scheduler runs f once after d has elapsed. Tests inject one that runs
// f on demand instead of waiting on real time.
type Scheduler interface {
	Schedule(d time.Duration, f func())
}

// SessionStore defines the session registry
type SessionStore interface {
	CreateSession(session *Session) error
	UpdateSession(session *Session) error
	GetSession(id SessionID) (*Session, error)
	ListSessions(limit int) ([]*Session, error)
}

// MessageStore defines the append-only message log
type MessageStore interface {
	AppendMessage(msg *Message) error
	GetMessagesBySession(sessionID SessionID, limit int) ([]*Message, error)
}
