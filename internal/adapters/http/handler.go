package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/lexcite/internal/app/conversation"
	"github.com/PabloGalante/lexcite/internal/domain"
	"github.com/PabloGalante/lexcite/internal/observability"
)

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /sessions → GET: list, POST: create
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}, /sessions/{id}/messages, /sessions/{id}/events,
	// /sessions/{id}/viewer
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /documents/{id} → GET: corpus document for the viewer
	mux.HandleFunc("/documents/", s.handleDocument)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type createSessionResponse struct {
	Session     sessionResponse `json:"session"`
	Intro       string          `json:"intro"`
	Suggestions []string        `json:"suggestions"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type citationResponse struct {
	QuotedText     string `json:"quoted_text"`
	SourceID       string `json:"source_id"`
	SourceLocator  string `json:"source_locator"`
	ParagraphLabel string `json:"paragraph_label,omitempty"`
	PageNumber     *int   `json:"page_number,omitempty"`
}

type messageResponse struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Role      string             `json:"role"`
	Text      string             `json:"text"`
	Citations []citationResponse `json:"citations"`
	CreatedAt time.Time          `json:"created_at"`
}

type stateResponse struct {
	Messages         []messageResponse `json:"messages"`
	AwaitingResponse bool              `json:"awaiting_response"`
	ActiveCitation   *citationResponse `json:"active_citation,omitempty"`
}

type getSessionResponse struct {
	Session sessionResponse `json:"session"`
	stateResponse
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Accepted bool          `json:"accepted"`
	State    stateResponse `json:"state"`
}

type selectCitationRequest struct {
	MessageID     string `json:"message_id"`
	CitationIndex int    `json:"citation_index"`
}

type viewerResponse struct {
	Open           bool              `json:"open"`
	SourceLocator  string            `json:"source_locator,omitempty"`
	ParagraphLabel string            `json:"paragraph_label,omitempty"`
	Citation       *citationResponse `json:"citation,omitempty"`
}

type documentResponse struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Locator    string            `json:"locator"`
	Excerpt    string            `json:"excerpt"`
	Paragraphs map[string]string `json:"paragraphs"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id}[/messages|/events|/viewer]
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])

	if id == "" || len(parts) > 2 {
		notFound(w, "not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r, id)
		default:
			methodNotAllowed(w)
		}
	case "events":
		switch r.Method {
		case http.MethodGet:
			s.handleEvents(w, r, id)
		default:
			methodNotAllowed(w)
		}
	case "viewer":
		switch r.Method {
		case http.MethodGet:
			s.handleGetViewer(w, r, id)
		case http.MethodPost:
			s.handleSelectCitation(w, r, id)
		case http.MethodDelete:
			s.handleDismissViewer(w, r, id)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w, "not found")
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// the body is optional
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{Title: req.Title})
	if err != nil {
		writeError(w, r, err)
		return
	}

	suggestions := out.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session:     toSessionResponse(out.Session),
		Intro:       out.Intro,
		Suggestions: suggestions,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	sessions, err := s.svc.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	session, state, err := s.svc.GetSessionTimeline(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		Session:       toSessionResponse(session),
		stateResponse: toStateResponse(state),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "wait must be a boolean")
			return
		}
		wait = b
	}

	// Blank text and overlapping requests are not errors: the response
	// just says the query was not accepted.
	out, err := s.svc.Submit(r.Context(), conversation.SubmitInput{
		SessionID: id,
		Text:      req.Text,
		Wait:      wait,
	})
	if err != nil {
		// The query went in; only the wait for its answer was cut short.
		if out != nil && out.Accepted {
			writeJSON(w, http.StatusAccepted, sendMessageResponse{
				Accepted: true,
				State:    toStateResponse(out.State),
			})
			return
		}
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if out.Accepted && !wait {
		status = http.StatusAccepted
	}

	writeJSON(w, status, sendMessageResponse{
		Accepted: out.Accepted,
		State:    toStateResponse(out.State),
	})
}

// handleEvents streams the session state as server-sent events: one event
// right away, then one per change, until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, errors.New("streaming unsupported"))
		return
	}

	// Only the newest snapshot matters; a slow client skips stale ones.
	updates := make(chan domain.SessionState, 1)
	unsubscribe, err := s.svc.Subscribe(id, func(state domain.SessionState) {
		for {
			select {
			case updates <- state:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer unsubscribe()

	_, current, err := s.svc.GetSessionTimeline(r.Context(), id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "state", toStateResponse(current)); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state := <-updates:
			if err := writeEvent(w, "state", toStateResponse(state)); err != nil {
				observability.LoggerFromContext(r.Context()).Warn("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleGetViewer(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	_, state, err := s.svc.GetSessionTimeline(r.Context(), id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewerResponse(state.ActiveCitation))
}

func (s *Server) handleSelectCitation(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req selectCitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.MessageID == "" {
		badRequest(w, "message_id is required")
		return
	}

	citation, err := s.svc.SelectCitation(r.Context(), conversation.SelectCitationInput{
		SessionID: id,
		MessageID: domain.MessageID(req.MessageID),
		Index:     req.CitationIndex,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toViewerResponse(&citation))
}

func (s *Server) handleDismissViewer(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.DismissViewer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/documents/")
	if id == "" {
		notFound(w, "not found")
		return
	}

	doc, err := s.svc.Document(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	paragraphs := doc.Paragraphs
	if paragraphs == nil {
		paragraphs = map[string]string{}
	}

	writeJSON(w, http.StatusOK, documentResponse{
		ID:         doc.ID,
		Title:      doc.Title,
		Locator:    doc.Locator,
		Excerpt:    doc.Excerpt,
		Paragraphs: paragraphs,
	})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        string(s.ID),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toCitationResponse(c domain.Citation) citationResponse {
	return citationResponse{
		QuotedText:     c.QuotedText,
		SourceID:       c.SourceID,
		SourceLocator:  c.SourceLocator,
		ParagraphLabel: c.ParagraphLabel,
		PageNumber:     c.PageNumber,
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	citations := make([]citationResponse, 0, len(m.Citations))
	for _, c := range m.Citations {
		citations = append(citations, toCitationResponse(c))
	}

	return messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Role:      string(m.Role),
		Text:      m.Text,
		Citations: citations,
		CreatedAt: m.CreatedAt,
	}
}

func toStateResponse(state domain.SessionState) stateResponse {
	out := stateResponse{
		Messages:         make([]messageResponse, 0, len(state.Messages)),
		AwaitingResponse: state.AwaitingResponse,
	}
	for _, m := range state.Messages {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	if state.ActiveCitation != nil {
		c := toCitationResponse(*state.ActiveCitation)
		out.ActiveCitation = &c
	}
	return out
}

func toViewerResponse(active *domain.Citation) viewerResponse {
	if active == nil {
		return viewerResponse{}
	}
	c := toCitationResponse(*active)
	return viewerResponse{
		Open:           true,
		SourceLocator:  active.SourceLocator,
		ParagraphLabel: active.ParagraphLabel,
		Citation:       &c,
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		badRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		notFound(w, "session not found")
	case errors.Is(err, domain.ErrMessageNotFound):
		notFound(w, "message not found")
	case errors.Is(err, domain.ErrCitationNotFound):
		notFound(w, "citation not found")
	case errors.Is(err, domain.ErrDocumentNotFound):
		notFound(w, "document not found")
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		internalError(w, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
