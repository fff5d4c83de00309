package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ticketry/internal/triage")

// Stage is a step of the triage state machine. Runs move strictly forward
// from StageReceived to StageComplete.
type Stage string

const (
	StageReceived        Stage = "received"
	StageAnalyzed        Stage = "analyzed"
	StageContextGathered Stage = "context_gathered"
	StageScored          Stage = "scored"
	StageDecided         Stage = "decided"
	StageExecuted        Stage = "executed"
	StageLogged          Stage = "logged"
	StageComplete        Stage = "complete"
)

var stageOrder = []Stage{
	StageReceived,
	StageAnalyzed,
	StageContextGathered,
	StageScored,
	StageDecided,
	StageExecuted,
	StageLogged,
	StageComplete,
}

// Next returns the following stage. StageComplete is terminal.
func (s Stage) Next() Stage {
	for i, st := range stageOrder[:len(stageOrder)-1] {
		if st == s {
			return stageOrder[i+1]
		}
	}
	return StageComplete
}

// ErrNoTicketSource is returned by lookups when the service was built
// without a TicketSource.
var ErrNoTicketSource = errors.New("no ticket source configured")

// Option configures a Service.
type Option func(*Service)

// WithVocabulary replaces the embedded vocabulary.
func WithVocabulary(v *Vocabulary) Option {
	return func(s *Service) { s.vocab = v }
}

// WithNotifier delivers workflow notifications through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAgentName sets the agent name written on audit records.
func WithAgentName(name string) Option {
	return func(s *Service) { s.agentName = name }
}

// WithHooks attaches progress callbacks, typically Metrics.Hooks().
func WithHooks(h Hooks) Option {
	return func(s *Service) { s.hooks = &h }
}

// WithTicketSource enables TriageByID and TriageOpen.
func WithTicketSource(ts TicketSource) Option {
	return func(s *Service) { s.tickets = ts }
}

// Service is the triage orchestrator. It holds no per-ticket state, so one
// Service may triage many tickets concurrently.
type Service struct {
	backend   Backend
	tickets   TicketSource
	vocab     *Vocabulary
	notifier  Notifier
	agentName string
	hooks     *Hooks
	logger    log.Logger

	analyzer  *Analyzer
	retriever *Retriever
	scorer    *Scorer
	decider   *Decider
	executor  *Executor
	auditor   *Auditor
}

// NewService wires the pipeline stages around backend.
func NewService(backend Backend, logger log.Logger, opts ...Option) *Service {
	if backend == nil {
		panic("triage: backend is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{backend: backend, logger: logger}
	for _, o := range opts {
		o(s)
	}
	if s.vocab == nil {
		s.vocab = DefaultVocabulary()
	}
	if s.tickets == nil {
		if ts, ok := backend.(TicketSource); ok {
			s.tickets = ts
		}
	}

	s.analyzer = NewAnalyzer(s.vocab)
	s.retriever = NewRetriever(backend, s.vocab, logger, s.hooks)
	s.scorer = NewScorer(backend, s.vocab, logger, s.hooks)
	s.decider = NewDecider(s.vocab)
	s.executor = NewExecutor(backend, s.notifier, logger, s.hooks)
	s.auditor = NewAuditor(backend, s.agentName, logger, s.hooks)
	return s
}

// Triage runs the full pipeline for one ticket and always returns a complete
// Result. Backend faults degrade to defaults; a nil ticket is a programming
// error and panics.
func (s *Service) Triage(ctx context.Context, t *Ticket) *Result {
	if t == nil {
		panic("triage: nil ticket")
	}

	ctx, span := tracer.Start(ctx, "triage.run", trace.WithAttributes(
		attribute.String("ticketry.ticket.id", t.ID),
		attribute.String("ticketry.customer.id", t.CustomerID),
	))
	defer span.End()

	start := time.Now()
	L := s.logger.With("ticket_id", t.ID)

	stage := StageReceived
	mark := start
	// advance moves to the next stage and reports how long reaching it took
	advance := func() {
		now := time.Now()
		stage = stage.Next()
		s.hooks.stage(stage, now.Sub(mark))
		mark = now
	}

	analysis := s.analyzer.Analyze(t.Subject, t.Description)
	advance()

	var bundle ContextBundle
	inSpan(ctx, "triage.retrieve", func(ctx context.Context) {
		bundle = s.retriever.Retrieve(ctx, t, analysis)
	})
	advance()

	var scoring ScoringResult
	inSpan(ctx, "triage.score", func(ctx context.Context) {
		scoring = s.scorer.Score(ctx, t, analysis, bundle)
	})
	advance()

	decision := s.decider.Decide(scoring, bundle)
	advance()

	var workflow WorkflowResult
	inSpan(ctx, "triage.execute", func(ctx context.Context) {
		workflow = s.executor.Execute(ctx, t, decision)
	})
	advance()

	var audited bool
	inSpan(ctx, "triage.audit", func(ctx context.Context) {
		_, audited = s.auditor.Record(ctx, t.ID, decision)
	})
	advance()

	originalStatus := t.Status
	if originalStatus == "" {
		originalStatus = StatusOpen
	}
	advance()

	result := &Result{
		ID:             ulid.Make().String(),
		TicketID:       t.ID,
		OriginalStatus: originalStatus,
		Decision:       decision,
		Context: ContextSummary{
			SimilarTicketsFound: len(bundle.SimilarTickets),
			KBArticlesFound:     len(bundle.KBArticles),
			CustomerHistory:     bundle.CustomerHistory,
		},
		Scoring:           scoring,
		Workflow:          workflow,
		SuggestedResponse: SuggestResponse(t, bundle, decision),
		AuditRecorded:     audited,
		Stage:             stage,
		ProcessingTime:    time.Since(start),
	}
	s.hooks.complete(result)

	span.SetAttributes(
		attribute.String("ticketry.category", decision.Category),
		attribute.String("ticketry.priority", string(decision.Priority)),
		attribute.String("ticketry.team", decision.AssignedTeam),
		attribute.Float64("ticketry.confidence", decision.Confidence),
		attribute.Bool("ticketry.needs_review", decision.NeedsHumanReview),
		attribute.Int("ticketry.failed_actions", len(workflow.Failed())),
	)

	L.Info(ctx, "triage complete",
		"category", decision.Category,
		"priority", string(decision.Priority),
		"team", decision.AssignedTeam,
		"confidence", decision.Confidence,
		"needs_review", decision.NeedsHumanReview,
		"score", scoring.PriorityScore,
		"similar_tickets", len(bundle.SimilarTickets),
		"kb_articles", len(bundle.KBArticles),
		"failed_actions", len(workflow.Failed()),
		"audited", audited,
		"duration_ms", result.ProcessingTime.Milliseconds(),
	)

	return result
}

func inSpan(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	fn(ctx)
}

// TriageByID loads a ticket from the ticket source and triages it. Lookup
// failures are returned; once loaded, triage itself cannot fail.
func (s *Service) TriageByID(ctx context.Context, id string) (*Result, error) {
	if s.tickets == nil {
		return nil, ErrNoTicketSource
	}
	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return s.Triage(ctx, t), nil
}
