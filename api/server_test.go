package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"med-lab/auth"
	"med-lab/contract"
	"med-lab/domain"
	"med-lab/domain/event"
	apperrors "med-lab/errors"
	"med-lab/observability"
	"med-lab/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeAuthService struct {
	registerErr error
	loginErr    error
}

func (f *fakeAuthService) Register(email, _ string) (services.Token, error) {
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return services.Token("token-for-" + email), nil
}

func (f *fakeAuthService) Login(email, _ string) (services.Token, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return services.Token("token-for-" + email), nil
}

type fakeConsultService struct {
	answer    domain.Answer
	askErr    error
	messages  []domain.Message
	lastQuery string
	lastImage []byte
	sink      contract.EventSink
}

func (f *fakeConsultService) Ask(_ context.Context, conversation domain.ConversationID, _ string, content string) (domain.Answer, error) {
	f.lastQuery = content
	if f.askErr != nil {
		return domain.Answer{}, f.askErr
	}
	answer := f.answer
	answer.Conversation = conversation
	return answer, nil
}

func (f *fakeConsultService) Identify(_ context.Context, conversation domain.ConversationID, _ string, image []byte, _ string, _ bool) (domain.Answer, error) {
	f.lastImage = image
	if f.askErr != nil {
		return domain.Answer{}, f.askErr
	}
	answer := f.answer
	answer.Conversation = conversation
	return answer, nil
}

func (f *fakeConsultService) GetMessages(domain.ConversationID, *string) ([]domain.Message, *string, error) {
	return f.messages, nil, nil
}

func (f *fakeConsultService) Follow(_ string, _ domain.ConversationID, sink contract.EventSink) {
	f.sink = sink
}

func (f *fakeConsultService) Unfollow(string, domain.ConversationID) {}

func newTestServer(authSvc services.IAuthService, consultSvc services.IConsultService) (*Server, string) {
	tokens := auth.NewTokenManager("unit-test-secret", time.Hour)
	bearer, _ := tokens.Generate("user-1", []string{"user"})
	server := NewServer(
		slog.Default(),
		authSvc, consultSvc, tokens,
		observability.NewMonitoringManager(slog.Default()),
		1000, 1<<20,
	)
	return server, bearer
}

func TestServer_Register(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(&fakeAuthService{}, &fakeConsultService{})

	body := `{"email":"test@example.com","password":"ComplexPass123!"}`
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	req.Equal(http.StatusCreated, rec.Code)
	req.Contains(rec.Body.String(), "token-for-test@example.com")
}

func TestServer_RegisterConflict(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(&fakeAuthService{registerErr: apperrors.ErrUserAlreadyExists}, &fakeConsultService{})

	body := `{"email":"test@example.com","password":"ComplexPass123!"}`
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	req.Equal(http.StatusConflict, rec.Code)
}

func TestServer_LoginRejectsBadCredentials(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(&fakeAuthService{loginErr: apperrors.ErrInvalidCredentials}, &fakeConsultService{})

	body := `{"email":"test@example.com","password":"wrong"}`
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestServer_QueryRequiresBearerToken(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(&fakeAuthService{}, &fakeConsultService{})

	body := `{"content":"what is aspirin?"}`
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body)))
	req.Equal(http.StatusUnauthorized, rec.Code)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	request.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, request)
	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestServer_QueryReturnsTheAnswer(t *testing.T) {
	req := require.New(t)
	consult := &fakeConsultService{answer: domain.Answer{
		ID:        uuid.New(),
		Content:   "Aspirin thins the blood.",
		Intents:   []domain.Intent{domain.IntentGeneral},
		Agents:    []string{"general"},
		Latency:   700 * time.Millisecond,
		CreatedAt: time.Now().UTC(),
	}}
	server, bearer := newTestServer(&fakeAuthService{}, consult)

	body := `{"content":"what is aspirin?"}`
	request := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	request.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, request)

	req.Equal(http.StatusOK, rec.Code)
	var resp answerResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("Aspirin thins the blood.", resp.Content)
	req.Equal([]string{"general"}, resp.Intents)
	// A fresh conversation id is minted when the client sends none
	req.NotEmpty(resp.ConversationID)
	req.Equal("what is aspirin?", consult.lastQuery)
}

func TestServer_QueryValidation(t *testing.T) {
	req := require.New(t)
	server, bearer := newTestServer(&fakeAuthService{}, &fakeConsultService{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty content", `{"content":""}`, http.StatusBadRequest},
		{"broken json", `{"content"`, http.StatusBadRequest},
		{"content too long", `{"content":"` + strings.Repeat("a", 1001) + `"}`, http.StatusRequestEntityTooLarge},
		{"bad conversation id", `{"conversation_id":"not-a-uuid","content":"hi"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tc.body))
			request.Header.Set("Authorization", "Bearer "+bearer)
			rec := httptest.NewRecorder()
			server.Routes().ServeHTTP(rec, request)
			req.Equal(tc.status, rec.Code)
		})
	}
}

func TestServer_QueryMapsPipelineErrors(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"overloaded", apperrors.ErrChannelFull, http.StatusServiceUnavailable},
		{"timeout", apperrors.ErrReplyTimeout, http.StatusGatewayTimeout},
		{"unsupported media", apperrors.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"other", apperrors.ErrEmptyAnswer, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, bearer := newTestServer(&fakeAuthService{}, &fakeConsultService{askErr: tc.err})
			request := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"content":"hi"}`))
			request.Header.Set("Authorization", "Bearer "+bearer)
			rec := httptest.NewRecorder()
			server.Routes().ServeHTTP(rec, request)
			req.Equal(tc.status, rec.Code)
		})
	}
}

func TestServer_Identify(t *testing.T) {
	req := require.New(t)
	consult := &fakeConsultService{answer: domain.Answer{
		ID:      uuid.New(),
		Content: "A white pill.",
		Intents: []domain.Intent{domain.IntentIdentification},
	}}
	server, bearer := newTestServer(&fakeAuthService{}, consult)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "pill.jpg")
	req.NoError(err)
	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF})
	req.NoError(err)
	req.NoError(writer.WriteField("caption", "what is this?"))
	req.NoError(writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/v1/identify", &buf)
	request.Header.Set("Authorization", "Bearer "+bearer)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, request)

	req.Equal(http.StatusOK, rec.Code)
	req.Equal([]byte{0xFF, 0xD8, 0xFF}, consult.lastImage)
	req.Contains(rec.Body.String(), "A white pill.")
}

func TestServer_IdentifyWithoutImage(t *testing.T) {
	req := require.New(t)
	server, bearer := newTestServer(&fakeAuthService{}, &fakeConsultService{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	req.NoError(writer.WriteField("caption", "no file attached"))
	req.NoError(writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/v1/identify", &buf)
	request.Header.Set("Authorization", "Bearer "+bearer)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, request)

	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestServer_Messages(t *testing.T) {
	req := require.New(t)
	conversation := uuid.NewString()
	consult := &fakeConsultService{messages: []domain.Message{
		{ID: uuid.New(), Role: domain.RoleAssistant, Content: "Hello", CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()},
	}}
	server, bearer := newTestServer(&fakeAuthService{}, consult)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conversation+"/messages", nil)
	request.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, request)

	req.Equal(http.StatusOK, rec.Code)
	var resp messagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Len(resp.Messages, 2)
	req.Equal("assistant", resp.Messages[0].Role)
}

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(&fakeAuthService{}, &fakeConsultService{})

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "ok")
}

func TestServer_StreamPushesConversationEvents(t *testing.T) {
	req := require.New(t)
	conversation := uuid.NewString()
	consult := &fakeConsultService{}
	server, bearer := newTestServer(&fakeAuthService{}, consult)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/conversations/" + conversation + "/stream"
	header := http.Header{"Authorization": []string{"Bearer " + bearer}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	defer func() {
		_ = conn.Close()
	}()

	// The handler registered its sink through Follow
	req.Eventually(func() bool { return consult.sink != nil },
		2*time.Second, 10*time.Millisecond)

	answer := domain.Answer{
		ID:           uuid.New(),
		Conversation: domain.ConversationID(conversation),
		Content:      "Paracetamol eases pain.",
		CreatedAt:    time.Now().UTC(),
	}
	req.NoError(consult.sink.Consume(context.Background(), event.Event{
		Type:      event.AnswerSynthesizedType,
		CreatedAt: answer.CreatedAt,
		Payload:   event.AnswerSynthesized{Answer: answer},
	}))

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var frame streamFrame
	req.NoError(conn.ReadJSON(&frame))
	req.Equal(string(event.AnswerSynthesizedType), frame.Type)
	req.Equal(conversation, frame.ConversationID)
	req.Equal("Paracetamol eases pain.", frame.Content)
}
