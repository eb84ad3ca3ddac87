package memory

import (
	"sync"

	"github.com/PabloGalante/lexcite/internal/domain"
)

// MessageStore keeps each session's log in append order. It is process-local.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.SessionID][]*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.SessionID][]*domain.Message),
	}
}

func (s *MessageStore) AppendMessage(msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

// GetMessagesBySession returns the last `limit` messages, oldest first.
// The returned slice is a fresh copy; the messages themselves are shared
// and must be treated as read-only.
func (s *MessageStore) GetMessagesBySession(sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
