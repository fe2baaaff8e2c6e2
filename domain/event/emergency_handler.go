package event

import (
	"log/slog"
	"sync"

	"med-lab/errors"
)

// EmergencyHandler keeps counters of urgent-care keyword hits for statistics.
type EmergencyHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter uint64
	hit     map[string]uint64
}

func NewEmergencyHandler(log *slog.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		log: log,
		hit: make(map[string]uint64),
	}
}

func (h *EmergencyHandler) Handle(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Type {
	case EmergencyHitType:
		payload, ok := event.Payload.(EmergencyHit)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter++
		for _, term := range payload.Terms {
			h.hit[term]++
		}
		h.log.Warn("urgent-care keywords in query",
			"conversation", payload.Conversation,
			"terms", payload.Terms)
	}
}

// Hits returns a copy of the per-term counters.
func (h *EmergencyHandler) Hits() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.hit))
	for k, v := range h.hit {
		out[k] = v
	}
	return out
}
