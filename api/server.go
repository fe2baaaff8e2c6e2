// Package api exposes the assistant over HTTP/JSON. Handlers stay thin:
// decode, delegate to a service, encode. All medical behavior lives behind
// the services.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"med-lab/auth"
	"med-lab/domain"
	apperrors "med-lab/errors"
	"med-lab/observability"
	"med-lab/services"

	"github.com/google/uuid"
)

type Server struct {
	log            *slog.Logger
	auth           services.IAuthService
	consult        services.IConsultService
	tokens         auth.TokenManager
	monitoring     *observability.MonitoringManager
	maxContentLen  int
	maxUploadBytes int64
}

func NewServer(
	log *slog.Logger,
	authService services.IAuthService,
	consultService services.IConsultService,
	tokens auth.TokenManager,
	monitoring *observability.MonitoringManager,
	maxContentLen int,
	maxUploadBytes int64,
) *Server {
	return &Server{
		log:            log,
		auth:           authService,
		consult:        consultService,
		tokens:         tokens,
		monitoring:     monitoring,
		maxContentLen:  maxContentLen,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes wires every endpoint. Auth endpoints and the health probe are
// public; everything else requires a bearer token.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("POST /api/v1/query", s.requireAuth(s.handleQuery))
	mux.Handle("POST /api/v1/identify", s.requireAuth(s.handleIdentify))
	mux.Handle("GET /api/v1/conversations/{id}/messages", s.requireAuth(s.handleMessages))
	mux.Handle("GET /api/v1/conversations/{id}/stream", s.requireAuth(s.handleStream))
	mux.Handle("GET /api/v1/stats", s.requireAuth(s.handleStats))

	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := s.auth.Register(req.Email, req.Password)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		s.writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, apperrors.ErrInvalidPassword):
		s.writeError(w, http.StatusBadRequest, "email or password does not meet requirements")
	default:
		s.log.Error("Registration failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "registration failed")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

type queryRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type answerResponse struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	Content        string   `json:"content"`
	Intents        []string `json:"intents"`
	Agents         []string `json:"agents"`
	Sources        []string `json:"sources,omitempty"`
	Language       string   `json:"language,omitempty"`
	Emergency      bool     `json:"emergency"`
	Model          string   `json:"model,omitempty"`
	LatencyMs      int64    `json:"latency_ms"`
	CreatedAt      string   `json:"created_at"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > s.maxContentLen {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content exceeds %d characters", s.maxContentLen))
		return
	}

	conversation, err := conversationOrNew(req.ConversationID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "conversation_id must be a uuid")
		return
	}

	answer, err := s.consult.Ask(r.Context(), conversation, userID(r), req.Content)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAnswerResponse(answer))
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "image part is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	image, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read image")
		return
	}

	conversation, err := conversationOrNew(r.FormValue("conversation_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "conversation_id must be a uuid")
		return
	}
	document := r.FormValue("kind") == "document"

	answer, err := s.consult.Identify(r.Context(), conversation, userID(r), image, r.FormValue("caption"), document)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAnswerResponse(answer))
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	conversation := domain.ConversationID(r.PathValue("id"))

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.consult.GetMessages(conversation, cursor)
	if err != nil {
		s.log.Error("Message lookup failed", "conversation", conversation, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}

	resp := messagesResponse{Messages: make([]messageResponse, 0, len(messages)), Cursor: next}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:        m.ID.String(),
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitoring.GetLatest())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAnswerError maps pipeline failures to HTTP statuses.
func (s *Server) writeAnswerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrChannelFull):
		s.writeError(w, http.StatusServiceUnavailable, "assistant is overloaded, try again shortly")
	case errors.Is(err, apperrors.ErrReplyTimeout):
		s.writeError(w, http.StatusGatewayTimeout, "assistant did not reply in time")
	case errors.Is(err, apperrors.ErrUnsupportedMedia):
		s.writeError(w, http.StatusUnsupportedMediaType, "only jpeg, png and webp photos are accepted")
	default:
		s.log.Error("Consultation failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "assistant is unavailable")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// conversationOrNew accepts an existing conversation id or mints a fresh one
// when the client starts a new thread with an empty id.
func conversationOrNew(id string) (domain.ConversationID, error) {
	if id == "" {
		return domain.ConversationID(uuid.NewString()), nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", err
	}
	return domain.ConversationID(id), nil
}

func toAnswerResponse(answer domain.Answer) answerResponse {
	intents := make([]string, 0, len(answer.Intents))
	for _, i := range answer.Intents {
		intents = append(intents, string(i))
	}
	return answerResponse{
		ID:             answer.ID.String(),
		ConversationID: string(answer.Conversation),
		Content:        answer.Content,
		Intents:        intents,
		Agents:         answer.Agents,
		Sources:        answer.Sources,
		Language:       answer.Language,
		Emergency:      answer.Emergency,
		Model:          answer.Model,
		LatencyMs:      answer.Latency.Milliseconds(),
		CreatedAt:      answer.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}
