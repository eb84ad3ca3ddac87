package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/lexcite/internal/domain"
	"github.com/PabloGalante/lexcite/internal/observability"
)

// DefaultDelay is the artificial latency before an answer is delivered.
const DefaultDelay = 1500 * time.Millisecond

type ControllerOptions struct {
	Scheduler domain.Scheduler
	Delay     time.Duration
	Store     domain.MessageStore
	Now       func() time.Time
	NewID     func() string
}

// Controller owns one session's message log and its request lifecycle.
//
// It is either Idle or AwaitingResponse. Submit moves it to
// AwaitingResponse and the scheduled delivery moves it back. There is no
// cancellation: a delivery always completes.
type Controller struct {
	sessionID domain.SessionID
	matcher   domain.Matcher
	scheduler domain.Scheduler
	delay     time.Duration
	store     domain.MessageStore
	now       func() time.Time
	newID     func() string
	log       *slog.Logger

	mu       sync.Mutex
	awaiting bool
	idle     chan struct{} // closed while Idle
	active   *domain.Citation
	subSeq   int
	subs     map[int]func(domain.SessionState)

	// serializes notifications so subscribers never see an older state last
	notifyMu sync.Mutex
}

func NewController(sessionID domain.SessionID, matcher domain.Matcher, opts ControllerOptions) (*Controller, error) {
	if matcher == nil {
		return nil, errors.New("conversation: matcher is required")
	}
	if opts.Store == nil {
		return nil, errors.New("conversation: message store is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("conversation: scheduler is required")
	}
	if opts.Delay < 0 {
		return nil, errors.New("conversation: delay must not be negative")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	idle := make(chan struct{})
	close(idle)

	return &Controller{
		sessionID: sessionID,
		matcher:   matcher,
		scheduler: opts.Scheduler,
		delay:     opts.Delay,
		store:     opts.Store,
		now:       opts.Now,
		newID:     opts.NewID,
		log:       observability.WithFields("session_id", sessionID),
		idle:      idle,
		subs:      make(map[int]func(domain.SessionState)),
	}, nil
}

func (c *Controller) SessionID() domain.SessionID {
	return c.sessionID
}

// Submit appends a user message and schedules the answer. It does nothing
// and returns false when the query is blank or a request is in flight.
func (c *Controller) Submit(query string) bool {
	text := strings.TrimSpace(query)
	if text == "" {
		c.log.Debug("submit ignored", "reason", "blank query")
		return false
	}

	c.mu.Lock()
	if c.awaiting {
		c.mu.Unlock()
		c.log.Debug("submit ignored", "reason", "request pending")
		return false
	}

	msg := &domain.Message{
		ID:        domain.MessageID(c.newID()),
		SessionID: c.sessionID,
		Role:      domain.RoleUser,
		Text:      text,
		Citations: []domain.Citation{},
		CreatedAt: c.now(),
	}
	if err := c.store.AppendMessage(msg); err != nil {
		c.mu.Unlock()
		c.log.Error("failed to append user message", "error", err)
		return false
	}

	c.awaiting = true
	c.idle = make(chan struct{})
	c.mu.Unlock()

	c.log.Info("query submitted", "message_id", msg.ID)
	c.publish()

	// outside the lock: a synchronous scheduler calls deliver right here
	c.scheduler.Schedule(c.delay, func() { c.deliver(text) })
	return true
}

func (c *Controller) deliver(query string) {
	answer := c.matcher.Match(query)

	c.mu.Lock()
	msg := &domain.Message{
		ID:        domain.MessageID(c.newID()),
		SessionID: c.sessionID,
		Role:      domain.RoleAssistant,
		Text:      answer.Text,
		Citations: domain.CloneCitations(answer.Citations),
		CreatedAt: c.now(),
	}
	if err := c.store.AppendMessage(msg); err != nil {
		c.log.Error("failed to append assistant message", "error", err)
	}
	c.awaiting = false
	close(c.idle)
	c.mu.Unlock()

	c.log.Info("answer delivered", "message_id", msg.ID, "citations", len(msg.Citations))
	c.publish()
}

// SelectCitation records citation as the one the document viewer shows.
// The message log is not touched.
func (c *Controller) SelectCitation(citation domain.Citation) {
	cp := citation.Clone()

	c.mu.Lock()
	c.active = &cp
	c.mu.Unlock()

	c.log.Info("citation selected", "source_id", cp.SourceID, "paragraph", cp.ParagraphLabel)
	c.publish()
}

// DismissViewer clears the active citation.
func (c *Controller) DismissViewer() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.mu.Unlock()

	c.log.Info("viewer dismissed")
	c.publish()
}

// State returns a snapshot that shares no memory with the controller.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() domain.SessionState {
	msgs, err := c.store.GetMessagesBySession(c.sessionID, 0)
	if err != nil {
		c.log.Error("failed to read message log", "error", err)
	}

	state := domain.SessionState{
		Messages:         make([]domain.Message, 0, len(msgs)),
		AwaitingResponse: c.awaiting,
	}
	for _, m := range msgs {
		state.Messages = append(state.Messages, m.Clone())
	}
	if c.active != nil {
		cp := c.active.Clone()
		state.ActiveCitation = &cp
	}
	return state
}

// AwaitingResponse reports whether a request is in flight.
func (c *Controller) AwaitingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// Wait blocks until the controller is Idle or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not call Submit,
// SelectCitation or DismissViewer itself.
func (c *Controller) Subscribe(fn func(domain.SessionState)) (unsubscribe func()) {
	c.mu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	state := c.stateLocked()
	subs := make([]func(domain.SessionState), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(state.Clone())
	}
}
