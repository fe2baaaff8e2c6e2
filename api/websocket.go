package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrame is the JSON shape pushed to live viewers.
type streamFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role,omitempty"`
	Content        string `json:"content,omitempty"`
	Emergency      bool   `json:"emergency,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// connSink adapts one websocket connection to the event sink contract so the
// fanout can push conversation events straight to the browser.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *connSink) Consume(_ context.Context, e event.Event) error {
	frame, ok := toStreamFrame(e)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

func (s *connSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func toStreamFrame(e event.Event) (streamFrame, bool) {
	switch evt := e.Payload.(type) {
	case event.QueryReceived:
		return streamFrame{
			Type:           string(e.Type),
			ConversationID: string(evt.Conversation),
			Role:           string(domain.RoleUser),
			Content:        evt.Content,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		}, true
	case event.AnswerSynthesized:
		return streamFrame{
			Type:           string(e.Type),
			ConversationID: string(evt.Answer.Conversation),
			Role:           string(domain.RoleAssistant),
			Content:        evt.Answer.Content,
			Emergency:      evt.Answer.Emergency,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		}, true
	case event.EmergencyHit:
		return streamFrame{
			Type:           string(e.Type),
			ConversationID: string(evt.Conversation),
			Emergency:      true,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		}, true
	default:
		return streamFrame{}, false
	}
}

// handleStream upgrades the connection and follows the conversation until
// the peer goes away. Events flow through the registry, not through this
// handler; the read loop only exists to notice disconnects and answer pings.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conversation := domain.ConversationID(r.PathValue("id"))
	uid := userID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	sink := &connSink{conn: conn}
	s.consult.Follow(uid, conversation, sink)
	s.log.Debug("Live stream opened", "conversation", conversation, "user", uid)

	defer func() {
		s.consult.Unfollow(uid, conversation)
		_ = conn.Close()
		s.log.Debug("Live stream closed", "conversation", conversation, "user", uid)
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				return
			}
		}
	}
}
