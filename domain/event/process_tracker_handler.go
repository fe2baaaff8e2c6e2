package event

import (
	"log/slog"

	"med-lab/errors"
)

type ProcessTrackerHandler struct {
	log *slog.Logger
}

func NewProcessTrackerHandler(log *slog.Logger) *ProcessTrackerHandler {
	return &ProcessTrackerHandler{log: log}
}

func (h ProcessTrackerHandler) Handle(event Event) {
	switch event.Type {
	case PIDTrackerType:
		payload, ok := event.Payload.(ProcessTracker)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.log.Debug("process tracked",
			"pid", payload.PID,
			"component", payload.Component,
			"status", payload.Status,
			"cpu", payload.Cpu,
			"ram", payload.Ram,
		)
	}
}
