package domain

import (
	"errors"
	"time"
)

type SessionID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrMessageNotFound  = errors.New("message not found")
	ErrCitationNotFound = errors.New("citation not found")
	ErrDocumentNotFound = errors.New("document not found")
)
