// Package observability aggregates live metrics out of the telemetry stream.
// It never touches the domain pipeline; everything here is derived state for
// operators (viewer CLI, debug endpoints).
package observability

import (
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/samber/lo"
)

// RecentConsultation is one answered query as shown to operators.
type RecentConsultation struct {
	Conversation string `json:"conversation"`
	Intents      string `json:"intents"`
	Model        string `json:"model"`
	Emergency    bool   `json:"emergency"`
	LatencyMs    int64  `json:"latency_ms"`
	Timestamp    string `json:"timestamp"`
}

// MonitoringStats aggregates every metric the viewer displays.
type MonitoringStats struct {
	QueriesReceived     uint64               `json:"queries_received"`
	AnswersDelivered    uint64               `json:"answers_delivered"`
	EmergencyHits       uint64               `json:"emergency_hits"`
	WorkerRestarts      uint64               `json:"worker_restarts"`
	CurrentQueueSize    int                  `json:"current_queue_size"`
	MaxCapacity         int                  `json:"max_capacity"`
	AllocMemMb          uint64               `json:"alloc_mem_mb"`
	NumGC               uint32               `json:"num_gc"`
	RecentConsultations []RecentConsultation `json:"recent_consultations"`
}

// MonitoringManager consumes telemetry events and keeps rolling statistics.
// It implements event.Handler so the telemetry worker can drive it directly.
type MonitoringManager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	recent   []RecentConsultation
	queue    atomic.Int64
	capacity atomic.Int64

	queries     atomic.Uint64
	answers     atomic.Uint64
	emergencies atomic.Uint64
	restarts    atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{
		log:    log,
		recent: make([]RecentConsultation, 0),
	}
}

func (mm *MonitoringManager) Handle(e event.Event) {
	switch evt := e.Payload.(type) {
	case event.QueryReceived:
		mm.queries.Add(1)
	case event.AnswerSynthesized:
		mm.answers.Add(1)
		mm.addRecent(RecentConsultation{
			Conversation: string(evt.Answer.Conversation),
			Intents:      joinIntents(evt.Answer),
			Model:        evt.Answer.Model,
			Emergency:    evt.Answer.Emergency,
			LatencyMs:    evt.Answer.Latency.Milliseconds(),
			Timestamp:    e.CreatedAt.Format("15:04:05"),
		})
	case event.EmergencyHit:
		mm.emergencies.Add(1)
	case event.WorkerRestartedAfterPanic:
		mm.restarts.Add(1)
	case event.ChannelCapacity:
		if evt.ChannelName == "commands" {
			mm.queue.Store(int64(evt.Length))
			mm.capacity.Store(int64(evt.Capacity))
		}
	}
}

// addRecent keeps the 20 newest consultations, newest first.
func (mm *MonitoringManager) addRecent(c RecentConsultation) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.recent = append([]RecentConsultation{c}, mm.recent...)
	if len(mm.recent) > 20 {
		mm.recent = mm.recent[:20]
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	recent := make([]RecentConsultation, len(mm.recent))
	copy(recent, mm.recent)
	mm.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MonitoringStats{
		QueriesReceived:     mm.queries.Load(),
		AnswersDelivered:    mm.answers.Load(),
		EmergencyHits:       mm.emergencies.Load(),
		WorkerRestarts:      mm.restarts.Load(),
		CurrentQueueSize:    int(mm.queue.Load()),
		MaxCapacity:         int(mm.capacity.Load()),
		AllocMemMb:          m.Alloc / 1024 / 1024,
		NumGC:               m.NumGC,
		RecentConsultations: recent,
	}
}

func joinIntents(answer domain.Answer) string {
	return strings.Join(lo.Map(answer.Intents, func(i domain.Intent, _ int) string {
		return string(i)
	}), ",")
}
