package conversation

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/lexcite/internal/domain"
	"github.com/PabloGalante/lexcite/internal/observability"
)

// Config tunes the controllers a Service creates.
type Config struct {
	Scheduler domain.Scheduler
	Delay     time.Duration
}

// Service keeps one Controller per session and is what the adapters talk to.
type Service struct {
	corpus       domain.Corpus
	matcher      domain.Matcher
	sessionStore domain.SessionStore
	messageStore domain.MessageStore
	scheduler    domain.Scheduler
	delay        time.Duration
	now          func() time.Time
	newID        func() string

	mu          sync.RWMutex
	controllers map[domain.SessionID]*Controller
}

func NewService(
	corpus domain.Corpus,
	matcher domain.Matcher,
	sessionStore domain.SessionStore,
	messageStore domain.MessageStore,
	cfg Config,
) *Service {
	return &Service{
		corpus:       corpus,
		matcher:      matcher,
		sessionStore: sessionStore,
		messageStore: messageStore,
		scheduler:    cfg.Scheduler,
		delay:        cfg.Delay,
		now:          time.Now,
		newID:        uuid.NewString,
		controllers:  make(map[domain.SessionID]*Controller),
	}
}

type StartSessionInput struct {
	Title string
}

type StartSessionOutput struct {
	Session     *domain.Session
	Intro       string
	Suggestions []string
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	now := s.now()
	log := observability.LoggerFromContext(ctx)

	session := &domain.Session{
		ID:        domain.SessionID(s.newID()),
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctrl, err := NewController(session.ID, s.matcher, ControllerOptions{
		Scheduler: s.scheduler,
		Delay:     s.delay,
		Store:     s.messageStore,
		Now:       s.now,
		NewID:     s.newID,
	})
	if err != nil {
		log.Error("failed to create controller", "error", err)
		return nil, err
	}

	if err := s.sessionStore.CreateSession(session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.controllers[session.ID] = ctrl
	s.mu.Unlock()

	log.Info("session started", "session_id", session.ID)

	return &StartSessionOutput{
		Session:     session,
		Intro:       s.corpus.Intro,
		Suggestions: append([]string(nil), s.corpus.Suggestions...),
	}, nil
}

// Controller returns the controller of a live session.
func (s *Service) Controller(id domain.SessionID) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctrl, ok := s.controllers[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return ctrl, nil
}

type SubmitInput struct {
	SessionID domain.SessionID
	Text      string
	// Wait blocks until the answer is delivered.
	Wait bool
}

type SubmitOutput struct {
	Accepted bool
	State    domain.SessionState
}

// Submit forwards a query to the session's controller. A rejected query is
// reported through Accepted, not as an error.
//
// When Wait is set and ctx ends before the answer arrives, the query stays
// accepted: Submit returns the current state together with ctx's error.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	ctrl, err := s.Controller(in.SessionID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID)

	accepted := ctrl.Submit(in.Text)
	log.Info("submit", "accepted", accepted)

	if accepted {
		s.touch(ctx, in.SessionID)
	}

	if accepted && in.Wait {
		if err := ctrl.Wait(ctx); err != nil {
			log.Warn("wait for answer interrupted", "error", err)
			return &SubmitOutput{Accepted: true, State: ctrl.State()}, err
		}
	}

	return &SubmitOutput{
		Accepted: accepted,
		State:    ctrl.State(),
	}, nil
}

func (s *Service) touch(ctx context.Context, id domain.SessionID) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	session, err := s.sessionStore.GetSession(id)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return
	}

	session.UpdatedAt = s.now()
	if err := s.sessionStore.UpdateSession(session); err != nil {
		log.Error("failed to update session", "error", err)
	}
}

// GetSessionTimeline returns the session and its state. limit keeps only
// the last `limit` messages; 0 keeps all.
func (s *Service) GetSessionTimeline(
	ctx context.Context,
	sessionID domain.SessionID,
	limit int,
) (*domain.Session, domain.SessionState, error) {

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sessionID,
		"limit", limit,
	)

	session, err := s.sessionStore.GetSession(sessionID)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, domain.SessionState{}, err
	}

	ctrl, err := s.Controller(sessionID)
	if err != nil {
		log.Error("failed to get controller", "error", err)
		return nil, domain.SessionState{}, err
	}

	state := ctrl.State()
	if limit > 0 && len(state.Messages) > limit {
		state.Messages = state.Messages[len(state.Messages)-limit:]
	}

	log.Info("fetched session timeline", "message_count", len(state.Messages))

	return session, state, nil
}

func (s *Service) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	sessions, err := s.sessionStore.ListSessions(limit)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list sessions", "error", err)
		return nil, err
	}
	return sessions, nil
}

type SelectCitationInput struct {
	SessionID domain.SessionID
	MessageID domain.MessageID
	Index     int
}

// SelectCitation looks up a citation in the log and opens it in the viewer.
func (s *Service) SelectCitation(ctx context.Context, in SelectCitationInput) (domain.Citation, error) {
	ctrl, err := s.Controller(in.SessionID)
	if err != nil {
		return domain.Citation{}, err
	}

	var msg *domain.Message
	state := ctrl.State()
	for i := range state.Messages {
		if state.Messages[i].ID == in.MessageID {
			msg = &state.Messages[i]
			break
		}
	}
	if msg == nil {
		return domain.Citation{}, fmt.Errorf("message %s: %w", in.MessageID, domain.ErrMessageNotFound)
	}
	if in.Index < 0 || in.Index >= len(msg.Citations) {
		return domain.Citation{}, fmt.Errorf("message %s citation %d: %w", in.MessageID, in.Index, domain.ErrCitationNotFound)
	}

	citation := msg.Citations[in.Index]
	ctrl.SelectCitation(citation)

	observability.LoggerFromContext(ctx).Info("viewer opened",
		"session_id", in.SessionID,
		"source_locator", citation.SourceLocator,
	)
	return citation, nil
}

func (s *Service) DismissViewer(ctx context.Context, id domain.SessionID) error {
	ctrl, err := s.Controller(id)
	if err != nil {
		return err
	}
	ctrl.DismissViewer()
	return nil
}

// Subscribe streams state snapshots of a session to fn.
func (s *Service) Subscribe(id domain.SessionID, fn func(domain.SessionState)) (func(), error) {
	ctrl, err := s.Controller(id)
	if err != nil {
		return nil, err
	}
	return ctrl.Subscribe(fn), nil
}

// Document returns a corpus document for the viewer.
func (s *Service) Document(id string) (domain.Document, error) {
	doc, ok := s.corpus.FindDocument(id)
	if !ok {
		return domain.Document{}, fmt.Errorf("document %q: %w", id, domain.ErrDocumentNotFound)
	}
	doc.Paragraphs = maps.Clone(doc.Paragraphs)
	return doc, nil
}
