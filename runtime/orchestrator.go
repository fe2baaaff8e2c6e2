// Package runtime handles command dispatch, event propagation, and worker
// supervision. It orchestrates the system without containing medical logic
// or domain rules.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"med-lab/agents"
	"med-lab/contract"
	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/errors"
	"med-lab/knowledge"
	"med-lab/llm"
	"med-lab/projection"
	"med-lab/repositories"
	"med-lab/runtime/workers"
	"med-lab/sink"
	"med-lab/triage"

	"github.com/samber/lo"
)

// Pipeline carries the external dependencies the consultation workers need.
// The orchestrator builds the rest (triage, classifier, agents) itself
// during the preparation phase of Start.
type Pipeline struct {
	Client         llm.Client
	VisionModel    string
	Index          *knowledge.Index
	KnowledgeLimit int
}

type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	numWorkers      int
	permanentSinks  []contract.EventSink
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	commands        chan domain.Command
	domainEvents    chan event.Event
	telemetryEvents chan event.Event
	processTracker  chan domain.Process
	messages        repositories.IMessageRepository
	consultations   repositories.IConsultationRepository
	pipeline        Pipeline
	handlers        []event.Handler
	timeline        *projection.Timeline
	sinkTimeout     time.Duration
	metricInterval  time.Duration
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor *workers.Supervisor,
	registry *Registry,
	telemetryEvents, domainEvents chan event.Event,
	messages repositories.IMessageRepository,
	consultations repositories.IConsultationRepository,
	pipeline Pipeline,
	handlers []event.Handler,
	numWorkers, bufferSize int,
	sinkTimeout, metricInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		log:             log,
		numWorkers:      numWorkers,
		permanentSinks:  nil,
		supervisor:      supervisor,
		registry:        registry,
		commands:        make(chan domain.Command, bufferSize),
		domainEvents:    domainEvents,
		telemetryEvents: telemetryEvents,
		processTracker:  make(chan domain.Process, bufferSize),
		messages:        messages,
		consultations:   consultations,
		pipeline:        pipeline,
		handlers:        handlers,
		timeline:        projection.NewTimeline(),
		sinkTimeout:     sinkTimeout,
		metricInterval:  metricInterval,
	}
}

func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Dispatch hands a command to the worker pool. The channel send never
// blocks: under sustained overload the command is rejected so the caller
// can tell the user instead of queueing unbounded work.
func (o *Orchestrator) Dispatch(cmd domain.Command) error {
	select {
	case o.commands <- cmd:
		return nil
	default:
		o.log.Warn(fmt.Sprintf("Command channel full for conversation %s, dropping command", cmd.ConversationID()))
		return errors.ErrChannelFull
	}
}

func (o *Orchestrator) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	messages, cursor, err := o.messages.GetMessages(string(cmd.Conversation), cmd.Cursor)
	return fromDiskMessages(messages), cursor, err
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:           item.ID,
			Conversation: domain.ConversationID(item.Conversation),
			Role:         domain.Role(item.Role),
			Content:      item.Content,
			CreatedAt:    item.At,
		}
	})
}

// Timeline exposes the in-memory projection rebuilt from the event stream.
func (o *Orchestrator) Timeline() *projection.Timeline {
	return o.timeline
}

func (o *Orchestrator) RegisterParticipant(pID string, id domain.ConversationID, s contract.EventSink) {
	o.registry.Subscribe(pID, id, s)
}

// UnregisterParticipant disconnects a live viewer.
func (o *Orchestrator) UnregisterParticipant(pID string, id domain.ConversationID) {
	o.registry.Unsubscribe(pID, id)
}

// TrackProcess asks the health worker to start sampling the given process.
func (o *Orchestrator) TrackProcess(p domain.Process) {
	select {
	case o.processTracker <- p:
	default:
		o.log.Debug("Process tracker channel full", "pid", p.PID)
	}
}

// Start initiates the orchestrator by preparing all components (triage,
// knowledge, agents, workers, pipeline) and then starting the supervisor.
// It uses a preparation pattern to minimize mutex locking time.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	// Heavy tasks like I/O (loading files) and CPU (Aho-Corasick build,
	// Bluge indexing) are done here.
	tri, err := o.prepareTriage()
	if err != nil {
		return err
	}

	if err := o.prepareKnowledge(); err != nil {
		return err
	}

	poolWorkers := o.preparePoolWorkers(tri)
	fanoutWorker, newSinks := o.preparePipeline()
	telemetryWorker := workers.NewTelemetryWorker(o.log, o.telemetryEvents, o.handlers)
	capacityWorker := workers.NewChannelCapacityWorker(o.log, o.namedChannels(), o.telemetryEvents, o.metricInterval)
	healthWorker := workers.NewHealthMonitoringWorker(o.log, o.telemetryEvents, o.processTracker, o.metricInterval)

	// 2. Critical Section (Short Lock)
	// We only lock to update the internal state and the supervisor.
	o.mu.Lock()
	o.permanentSinks = append(o.permanentSinks, newSinks...)

	// Registering all workers to the supervisor
	o.supervisor.Add(fanoutWorker)
	o.supervisor.Add(telemetryWorker)
	o.supervisor.Add(capacityWorker)
	o.supervisor.Add(healthWorker)
	for _, w := range poolWorkers {
		o.supervisor.Add(w)
	}
	o.mu.Unlock()

	// 3. Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// prepareTriage loads the keyword lists and builds the Aho-Corasick automatons.
func (o *Orchestrator) prepareTriage() (*triage.Triage, error) {
	tri, err := triage.New(triage.NewEmbeddedLoader())
	if err != nil {
		return nil, err
	}
	o.log.Info(fmt.Sprintf("Emergency dictionaries loaded [%s]",
		strings.Join(tri.Languages(), ",")))
	return tri, nil
}

// prepareKnowledge parses the embedded monographs and (re)indexes them.
func (o *Orchestrator) prepareKnowledge() error {
	monographs, err := knowledge.NewEmbeddedLoader().LoadAll("monographs")
	if err != nil {
		return err
	}
	return o.pipeline.Index.Load(monographs)
}

// preparePoolWorkers creates the consultation worker pool sharing one
// command channel. The agents and the synthesizer are stateless, so all
// workers share the same instances.
func (o *Orchestrator) preparePoolWorkers(tri *triage.Triage) []contract.Worker {
	registry := agents.NewRegistry(
		agents.NewGeneralAgent(o.pipeline.Client),
		agents.NewDosageAgent(o.pipeline.Client),
		agents.NewInteractionsAgent(o.pipeline.Client),
		agents.NewSideEffectsAgent(o.pipeline.Client),
		agents.NewIdentificationAgent(o.pipeline.Client, o.pipeline.VisionModel),
		agents.NewDocumentAgent(o.pipeline.Client, o.pipeline.VisionModel),
	)
	classifier := agents.NewClassifier(tri, o.pipeline.Client, o.log)
	synthesizer := agents.NewSynthesizer(o.pipeline.Client, o.log)

	var res []contract.Worker
	for i := 0; i < o.numWorkers; i++ {
		res = append(res, workers.NewConsultationWorker(
			o.log, o.commands, o.domainEvents,
			tri, classifier, registry, synthesizer,
			o.pipeline.Index, o.pipeline.KnowledgeLimit,
			o.messages,
		))
	}
	return res
}

// preparePipeline initializes the sinks and the fanout worker.
func (o *Orchestrator) preparePipeline() (contract.Worker, []contract.EventSink) {
	// Local sinks that will be added to permanentSinks
	newSinks := []contract.EventSink{
		o.timeline,
		sink.NewDiskSink(o.messages, o.consultations, o.log),
	}

	// We prepare the fanout with current permanent sinks + the new ones
	allSinks := append(o.permanentSinks, newSinks...)

	fanoutWorker := workers.NewEventFanout(
		o.log,
		allSinks,
		o.registry,
		o.domainEvents,
		o.telemetryEvents,
		o.sinkTimeout,
	)

	return fanoutWorker, newSinks
}

func (o *Orchestrator) namedChannels() []workers.NamedChannel {
	return []workers.NamedChannel{
		{Name: "commands", Channel: o.commands},
		{Name: "domainEvents", Channel: o.domainEvents},
		{Name: "telemetryEvents", Channel: o.telemetryEvents},
	}
}

// Stop initiates a graceful shutdown of the orchestrator.
// It cancels the supervision context to signal workers to stop.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
