package domain

// Citation points at a quoted passage of a source document.
// ParagraphLabel is empty and PageNumber is nil when the source has none.
type Citation struct {
	QuotedText     string
	SourceID       string
	SourceLocator  string
	ParagraphLabel string
	PageNumber     *int
}

// Clone returns a copy that shares no memory with c.
func (c Citation) Clone() Citation {
	if c.PageNumber != nil {
		p := *c.PageNumber
		c.PageNumber = &p
	}
	return c
}

// Message is one entry of a session's log. Never mutated after it is appended.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Text      string
	Citations []Citation
	CreatedAt Timestamp
}

// Clone returns a deep copy of m.
func (m *Message) Clone() Message {
	out := *m
	out.Citations = CloneCitations(m.Citations)
	return out
}

// CloneCitations copies cs. The result is never nil.
func CloneCitations(cs []Citation) []Citation {
	out := make([]Citation, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Clone())
	}
	return out
}

// Session is the registry record for one conversation.
type Session struct {
	ID        SessionID
	Title     string
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// SessionState is what the presentation layer renders.
type SessionState struct {
	Messages         []Message
	AwaitingResponse bool
	ActiveCitation   *Citation
}

// Answer is the outcome of matching a query.
type Answer struct {
	Text      string
	Citations []Citation
}

// Clone returns a deep copy of s.
func (s SessionState) Clone() SessionState {
	out := SessionState{
		Messages:         make([]Message, 0, len(s.Messages)),
		AwaitingResponse: s.AwaitingResponse,
	}
	for i := range s.Messages {
		out.Messages = append(out.Messages, s.Messages[i].Clone())
	}
	if s.ActiveCitation != nil {
		c := s.ActiveCitation.Clone()
		out.ActiveCitation = &c
	}
	return out
}
