package event

import (
	"log/slog"
	"time"
)

type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(e Event) {
	if payload, ok := e.Payload.(AnswerSynthesized); ok {
		h.log.Info("telemetry: consultation latency",
			"conversation", payload.Answer.Conversation,
			"agents", payload.Answer.Agents,
			"latency_ms", payload.Answer.Latency.Milliseconds(),
		)

		if payload.Answer.Latency > h.latencyThreshold {
			h.log.Warn("high latency detected", "latency", payload.Answer.Latency)
		}
	}
}
