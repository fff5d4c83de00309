package triage

import (
	"context"
	"errors"

	"github.com/linnemanlabs/go-core/log"
)

// Retrieval fault sources, used as log fields and metric labels.
const (
	SourceSimilarTickets = "similar_tickets"
	SourceKBArticles     = "kb_articles"
	SourceCustomer       = "customer_history"
	SourceTeamWorkload   = "team_workload"
)

// Retriever gathers the context bundle for a ticket. Every sub-query is a
// single attempt; failures degrade to empty or default values.
type Retriever struct {
	backend Backend
	vocab   *Vocabulary
	logger  log.Logger
	hooks   *Hooks
}

// NewRetriever creates a Retriever over backend.
func NewRetriever(backend Backend, vocab *Vocabulary, logger log.Logger, hooks *Hooks) *Retriever {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Retriever{backend: backend, vocab: vocab, logger: logger, hooks: hooks}
}

// Retrieve builds the context bundle. It never returns an error.
func (r *Retriever) Retrieve(ctx context.Context, t *Ticket, _ AnalysisResult) ContextBundle {
	return ContextBundle{
		SimilarTickets:  r.similarTickets(ctx, t),
		KBArticles:      r.kbArticles(ctx, t),
		CustomerHistory: r.customerHistory(ctx, t.CustomerID),
	}
}

func (r *Retriever) similarTickets(ctx context.Context, t *Ticket) []SimilarTicket {
	similar, err := r.backend.SearchSimilar(ctx, t.Subject, t.Description)
	if err != nil {
		r.fault(ctx, SourceSimilarTickets, err, "ticket_id", t.ID)
		return []SimilarTicket{}
	}
	if len(similar) > SimilarTicketLimit {
		similar = similar[:SimilarTicketLimit]
	}
	if similar == nil {
		similar = []SimilarTicket{}
	}
	return similar
}

func (r *Retriever) kbArticles(ctx context.Context, t *Ticket) []KBArticle {
	articles, err := r.backend.SearchKB(ctx, t.Subject, t.Description)
	if err != nil {
		r.fault(ctx, SourceKBArticles, err, "ticket_id", t.ID)
		return []KBArticle{}
	}
	if len(articles) > KBArticleLimit {
		articles = articles[:KBArticleLimit]
	}
	if articles == nil {
		articles = []KBArticle{}
	}
	return articles
}

// defaultHistory is what scoring sees when nothing is known about the customer.
func (r *Retriever) defaultHistory(customerID string) CustomerHistory {
	return CustomerHistory{
		CustomerID:        customerID,
		Plan:              r.vocab.DefaultPlan,
		SatisfactionScore: r.vocab.DefaultSatisfaction,
		PastTickets:       []Ticket{},
	}
}

func (r *Retriever) customerHistory(ctx context.Context, customerID string) CustomerHistory {
	if customerID == "" {
		return r.defaultHistory("")
	}

	cust, err := r.backend.GetCustomer(ctx, customerID)
	if err != nil {
		// an unknown customer is expected, not a fault
		if !errors.Is(err, ErrNotFound) {
			r.fault(ctx, SourceCustomer, err, "customer_id", customerID)
		}
		return r.defaultHistory(customerID)
	}

	recent, err := r.backend.ListRecentTickets(ctx, customerID, RecentTicketLimit)
	if err != nil {
		r.fault(ctx, SourceCustomer, err, "customer_id", customerID)
		return r.defaultHistory(customerID)
	}
	if len(recent) > RecentTicketLimit {
		recent = recent[:RecentTicketLimit]
	}

	h := CustomerHistory{
		CustomerID:        customerID,
		Plan:              cust.Plan,
		SatisfactionScore: cust.SatisfactionScore,
		TotalTickets:      len(recent),
		PastTickets:       recent[:min(len(recent), PastTicketsKept)],
	}
	if h.Plan == "" {
		h.Plan = r.vocab.DefaultPlan
	}
	if h.SatisfactionScore == 0 {
		h.SatisfactionScore = r.vocab.DefaultSatisfaction
	}
	if h.PastTickets == nil {
		h.PastTickets = []Ticket{}
	}
	return h
}

func (r *Retriever) fault(ctx context.Context, source string, err error, kv ...any) {
	r.hooks.retrievalFault(source)
	r.logger.Warn(ctx, "context retrieval failed, using defaults",
		append([]any{"source", source, "error", err.Error()}, kv...)...)
}
