package event

import (
	"log/slog"
	"sync"

	"med-lab/errors"
)

type WorkerRestartedHandler struct {
	mu       sync.Mutex
	log      *slog.Logger
	restarts map[string]uint64
}

func NewWorkerRestartedHandler(log *slog.Logger) *WorkerRestartedHandler {
	return &WorkerRestartedHandler{log: log, restarts: make(map[string]uint64)}
}

func (h *WorkerRestartedHandler) Handle(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Type {
	case RestartedAfterPanicType:
		payload, ok := event.Payload.(WorkerRestartedAfterPanic)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.restarts[payload.WorkerName]++
		h.log.Warn("worker restarted after panic",
			"name", payload.WorkerName,
			"count", h.restarts[payload.WorkerName])
	}
}
