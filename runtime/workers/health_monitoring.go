package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples CPU and memory usage of the tracked
// processes and publishes the figures on the telemetry channel. The server
// registers itself at startup; auxiliary tools register through the
// processTrackerChan when they attach.
type HealthMonitoringWorker struct {
	mu                 sync.Mutex
	log                *slog.Logger
	telemetryChan      chan event.Event
	processTrackerChan chan domain.Process
	metricInterval     time.Duration
	processes          map[domain.PID]domain.Component
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	telemetryChan chan event.Event,
	processTrackerChan chan domain.Process,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:                log,
		telemetryChan:      telemetryChan,
		processTrackerChan: processTrackerChan,
		metricInterval:     metricInterval,
		processes:          make(map[domain.PID]domain.Component),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			for pid, component := range w.snapshot() {
				p, err := process.NewProcess(int32(pid))
				if err != nil {
					w.log.Debug("Error while retrieving process", "pid", pid, "err", err)
					w.mu.Lock()
					delete(w.processes, pid)
					w.mu.Unlock()
					w.log.Debug("Tracked process has gone", "pid", pid, "component", component)
					continue
				}
				status, err := p.Status()
				if err != nil {
					w.log.Error("Error while finding process status", "err", err)
					continue
				}
				cpu, err := p.CPUPercent()
				if err != nil {
					w.log.Error("Error while finding process cpu usage", "err", err)
					continue
				}
				ram, err := p.MemoryPercent()
				if err != nil {
					w.log.Error("Error while finding process ram usage", "err", err)
					continue
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case w.telemetryChan <- toProcessTrackerEvent(pid, component, status, cpu, ram):
				default:
					w.log.Debug("Observability telemetry event lost")
				}
			}
		case proc := <-w.processTrackerChan:
			if _, err := process.NewProcess(int32(proc.PID)); err != nil {
				w.log.Debug("Error while retrieving process", "pid", proc.PID, "err", err)
			}
			// keep a track of process in map
			w.mu.Lock()
			w.processes[proc.PID] = proc.Component
			w.mu.Unlock()
		}
	}
}

func (w *HealthMonitoringWorker) snapshot() map[domain.PID]domain.Component {
	w.mu.Lock()
	defer w.mu.Unlock()
	copied := make(map[domain.PID]domain.Component, len(w.processes))
	for pid, component := range w.processes {
		copied[pid] = component
	}
	return copied
}

func toProcessTrackerEvent(pid domain.PID, component domain.Component,
	status string, cpu float64, ram float32) event.Event {
	return event.Event{
		Type:      event.PIDTrackerType,
		CreatedAt: time.Now().UTC(),
		Payload: event.ProcessTracker{
			PID:       pid,
			Component: component,
			Status:    domain.PIDStatus(status),
			Cpu:       cpu,
			Ram:       ram,
		},
	}
}
