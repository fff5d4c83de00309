package triage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by backends when a ticket or customer does not exist.
var ErrNotFound = errors.New("not found")

// Retrieval limits applied by the context retriever.
const (
	SimilarTicketLimit = 5
	KBArticleLimit     = 3
	RecentTicketLimit  = 10
	PastTicketsKept    = 5
)

// Backend is the document store the pipeline reads context from and writes
// decisions to. Implementations must be safe for concurrent use.
type Backend interface {
	// SearchSimilar returns resolved tickets ranked by relevance to the text,
	// subject weighted double, at most SimilarTicketLimit.
	SearchSimilar(ctx context.Context, subject, description string) ([]SimilarTicket, error)

	// SearchKB returns articles ranked by relevance over title (x3), content
	// and tags (x2), at most KBArticleLimit.
	SearchKB(ctx context.Context, subject, description string) ([]KBArticle, error)

	// GetCustomer returns ErrNotFound for unknown ids.
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	// ListRecentTickets returns the customer's tickets, newest first.
	ListRecentTickets(ctx context.Context, customerID string, limit int) ([]Ticket, error)

	UpdateTicket(ctx context.Context, id string, upd TicketUpdate) error
	AppendAction(ctx context.Context, action *AgentAction) error

	// OpenCountByTeam returns open-ticket counts keyed by assigned team.
	OpenCountByTeam(ctx context.Context) (map[string]int, error)
}

// TicketSource loads tickets to triage.
type TicketSource interface {
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	ListOpenTickets(ctx context.Context, limit int) ([]Ticket, error)
}

// Store is a backend that can also supply tickets.
type Store interface {
	Backend
	TicketSource
}

// Seeder loads reference data into a store. Puts replace any record with
// the same ID.
type Seeder interface {
	PutTicket(ctx context.Context, t Ticket) error
	PutCustomer(ctx context.Context, c Customer) error
	PutArticle(ctx context.Context, a Article) error
}

// AuditReader exposes the audit trail written through AppendAction.
type AuditReader interface {
	// ListActions returns the ticket's audit records, oldest first.
	ListActions(ctx context.Context, ticketID string) ([]AgentAction, error)
}
