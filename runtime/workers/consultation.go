package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"med-lab/agents"
	"med-lab/contract"
	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/errors"
	"med-lab/knowledge"
	"med-lab/llm"
	"med-lab/repositories"
	"med-lab/triage"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Ensure *ConsultationWorker implements the contract.Worker interface at
// compile time. This prevents "type mismatch" errors from appearing late in
// other packages and acts as a static assertion of our architectural rules.
var _ contract.Worker = (*ConsultationWorker)(nil)

// EmergencyNotice is prepended to the answer when triage finds urgent-care
// terms in the query. The answer itself is never suppressed.
const EmergencyNotice = "If this is happening right now, contact your local emergency " +
	"number or go to the nearest emergency department before reading further."

// ConsultationWorker pulls commands off the shared channel and runs the
// whole pipeline for each one: triage, classification, knowledge lookup,
// agent fan-out, synthesis. Several instances run in parallel under the
// supervisor; each command is handled by exactly one of them.
type ConsultationWorker struct {
	log            *slog.Logger
	commands       chan domain.Command
	events         chan event.Event
	triage         *triage.Triage
	classifier     *agents.Classifier
	registry       *agents.Registry
	synthesizer    *agents.Synthesizer
	index          *knowledge.Index
	knowledgeLimit int
	messages       repositories.IMessageRepository
}

func NewConsultationWorker(
	log *slog.Logger,
	commands chan domain.Command,
	events chan event.Event,
	tri *triage.Triage,
	classifier *agents.Classifier,
	registry *agents.Registry,
	synthesizer *agents.Synthesizer,
	index *knowledge.Index,
	knowledgeLimit int,
	messages repositories.IMessageRepository,
) *ConsultationWorker {
	return &ConsultationWorker{
		log:            log,
		commands:       commands,
		events:         events,
		triage:         tri,
		classifier:     classifier,
		registry:       registry,
		synthesizer:    synthesizer,
		index:          index,
		knowledgeLimit: knowledgeLimit,
		messages:       messages,
	}
}

func (w *ConsultationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			switch c := cmd.(type) {
			case domain.AskCommand:
				w.handleAsk(ctx, c)
			case domain.IdentifyCommand:
				w.handleIdentify(ctx, c)
			default:
				w.log.Warn("Unknown command dropped", "type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (w *ConsultationWorker) handleAsk(ctx context.Context, cmd domain.AskCommand) {
	start := time.Now()

	info := whatlanggo.Detect(cmd.Content)
	langCode := info.Lang.Iso6391()
	langName := info.Lang.String()

	w.emit(ctx, event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.QueryReceived{
			MessageID:    cmd.ID,
			Conversation: cmd.Conversation,
			UserID:       cmd.UserID,
			Content:      cmd.Content,
			Language:     langCode,
			At:           cmd.CreatedAt,
		},
	})

	emergencyTerms := w.triage.Emergency(cmd.Content)
	if len(emergencyTerms) > 0 {
		w.log.Warn("Emergency terms in query",
			"conversation", cmd.Conversation, "terms", emergencyTerms)
		w.emit(ctx, event.Event{
			Type:      event.EmergencyHitType,
			CreatedAt: time.Now().UTC(),
			Payload: event.EmergencyHit{
				Conversation: cmd.Conversation,
				UserID:       cmd.UserID,
				Terms:        emergencyTerms,
				At:           time.Now().UTC(),
			},
		})
	}

	intents := w.classifier.Classify(ctx, cmd.Content)
	selected := w.registry.ForIntents(intents)
	if len(selected) == 0 {
		w.reply(cmd.Reply, domain.Result{Err: errors.ErrNoAgentAvailable})
		return
	}

	cards, err := w.index.Search(ctx, cmd.Content, w.knowledgeLimit)
	if err != nil {
		// A broken index degrades the answer, it does not block it
		w.log.Error("Knowledge search failed", "error", err)
	}

	consultation := agents.Consultation{
		Query:    cmd.Content,
		Language: langName,
		History:  w.history(cmd.Conversation),
		Cards:    cards,
	}

	findings := w.fanOut(ctx, selected, consultation)
	content, err := w.synthesizer.Synthesize(ctx, cmd.Content, langName, findings)
	if err != nil {
		w.reply(cmd.Reply, domain.Result{Err: err})
		return
	}
	if len(emergencyTerms) > 0 {
		content = EmergencyNotice + "\n\n" + content
	}

	answer := domain.Answer{
		ID:           uuid.New(),
		Conversation: cmd.Conversation,
		Content:      content,
		Intents:      intents,
		Agents:       agentNames(findings),
		Sources:      cardTitles(cards),
		Language:     langCode,
		Emergency:    len(emergencyTerms) > 0,
		Model:        findingModel(findings),
		Latency:      time.Since(start),
		CreatedAt:    time.Now().UTC(),
	}

	w.reply(cmd.Reply, domain.Result{Answer: answer})
	w.emit(ctx, event.Event{
		Type:      event.AnswerSynthesizedType,
		CreatedAt: answer.CreatedAt,
		Payload:   event.AnswerSynthesized{Answer: answer, Query: cmd.Content},
	})
}

func (w *ConsultationWorker) handleIdentify(ctx context.Context, cmd domain.IdentifyCommand) {
	start := time.Now()

	intent := domain.IntentIdentification
	if cmd.Document {
		intent = domain.IntentDocument
	}

	w.emit(ctx, event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.QueryReceived{
			MessageID:    cmd.ID,
			Conversation: cmd.Conversation,
			UserID:       cmd.UserID,
			Content:      captionOrDefault(cmd.Caption, intent),
			At:           cmd.CreatedAt,
		},
	})

	agent, ok := w.registry.Get(intent)
	if !ok {
		w.reply(cmd.Reply, domain.Result{Err: errors.ErrNoAgentAvailable})
		return
	}

	finding, err := agent.Consult(ctx, agents.Consultation{
		Caption: cmd.Caption,
		Image:   &llm.Image{Mime: cmd.Mime, Data: cmd.Image},
	})
	if err != nil {
		w.reply(cmd.Reply, domain.Result{Err: err})
		return
	}

	content, err := w.synthesizer.Synthesize(ctx, cmd.Caption, "", []agents.Finding{finding})
	if err != nil {
		w.reply(cmd.Reply, domain.Result{Err: err})
		return
	}

	answer := domain.Answer{
		ID:           uuid.New(),
		Conversation: cmd.Conversation,
		Content:      content,
		Intents:      []domain.Intent{intent},
		Agents:       []string{finding.Agent},
		Model:        finding.Model,
		Latency:      time.Since(start),
		CreatedAt:    time.Now().UTC(),
	}

	w.reply(cmd.Reply, domain.Result{Answer: answer})
	w.emit(ctx, event.Event{
		Type:      event.AnswerSynthesizedType,
		CreatedAt: answer.CreatedAt,
		Payload:   event.AnswerSynthesized{Answer: answer, Query: captionOrDefault(cmd.Caption, intent)},
	})
}

// fanOut consults the selected agents in parallel and keeps the findings in
// the agents' selection order. An agent failure only loses its own section.
func (w *ConsultationWorker) fanOut(ctx context.Context, selected []agents.Agent, c agents.Consultation) []agents.Finding {
	results := make([]*agents.Finding, len(selected))
	var wg sync.WaitGroup

	for i, agent := range selected {
		wg.Add(1)
		go func(i int, agent agents.Agent) {
			defer wg.Done()
			finding, err := agent.Consult(ctx, c)
			if err != nil {
				w.log.Error("Agent consultation failed", "agent", agent.Name(), "error", err)
				return
			}
			results[i] = &finding
		}(i, agent)
	}
	wg.Wait()

	var findings []agents.Finding
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// history pulls the newest transcript page and replays it oldest first, the
// order a prompt wants it in. A storage error only costs the context window.
func (w *ConsultationWorker) history(conversation domain.ConversationID) []domain.Message {
	stored, _, err := w.messages.GetMessages(string(conversation), nil)
	if err != nil {
		w.log.Error("History lookup failed", "conversation", conversation, "error", err)
		return nil
	}
	return lo.Reverse(lo.Map(stored, func(m repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:           m.ID,
			Conversation: conversation,
			Role:         domain.Role(m.Role),
			Content:      m.Content,
			CreatedAt:    m.At,
		}
	}))
}

// reply delivers the result without ever blocking. The channel is buffered
// with capacity 1 and each command gets at most one send, so a caller that
// already timed out simply never reads it.
func (w *ConsultationWorker) reply(ch chan domain.Result, result domain.Result) {
	if ch == nil {
		return
	}
	select {
	case ch <- result:
	default:
		w.log.Warn("Reply channel full, result dropped")
	}
}

func (w *ConsultationWorker) emit(ctx context.Context, evt event.Event) {
	select {
	case <-ctx.Done():
	case w.events <- evt:
	}
}

func captionOrDefault(caption string, intent domain.Intent) string {
	if caption != "" {
		return caption
	}
	if intent == domain.IntentDocument {
		return "[document photo]"
	}
	return "[pill photo]"
}

func agentNames(findings []agents.Finding) []string {
	return lo.Map(findings, func(f agents.Finding, _ int) string { return f.Agent })
}

func cardTitles(cards []knowledge.Card) []string {
	return lo.Map(cards, func(c knowledge.Card, _ int) string { return c.Title })
}

func findingModel(findings []agents.Finding) string {
	if len(findings) == 0 {
		return ""
	}
	return findings[0].Model
}
