// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

// Store holds tickets, customers, articles and audit records in memory.
// Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	tickets   map[string]*triage.Ticket   // ticket ID -> ticket
	customers map[string]*triage.Customer // customer ID -> customer
	articles  map[string]*triage.Article  // article ID -> article
	actions   []triage.AgentAction        // append-only
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		tickets:   make(map[string]*triage.Ticket),
		customers: make(map[string]*triage.Customer),
		articles:  make(map[string]*triage.Article),
	}
}

// PutTicket stores a copy of t, replacing any ticket with the same ID.
func (s *Store) PutTicket(_ context.Context, t triage.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = cloneTicket(&t)
	return nil
}

// PutCustomer stores a copy of c.
func (s *Store) PutCustomer(_ context.Context, c triage.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = &c
	return nil
}

// PutArticle stores a copy of a.
func (s *Store) PutArticle(_ context.Context, a triage.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Tags = slices.Clone(a.Tags)
	s.articles[a.ID] = &a
	return nil
}

// Actions returns a copy of the audit log in append order.
func (s *Store) Actions() []triage.AgentAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.actions)
}

// GetTicket returns a copy of the ticket or triage.ErrNotFound.
func (s *Store) GetTicket(_ context.Context, id string) (*triage.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, triage.ErrNotFound
	}
	return cloneTicket(t), nil
}

// ListOpenTickets returns open tickets, oldest first.
func (s *Store) ListOpenTickets(_ context.Context, limit int) ([]triage.Ticket, error) {
	s.mu.RLock()
	var open []triage.Ticket
	for _, t := range s.tickets {
		if t.Status == triage.StatusOpen {
			open = append(open, *cloneTicket(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

// SearchSimilar ranks resolved tickets by query-term hits, subject weighted double.
func (s *Store) SearchSimilar(_ context.Context, subject, description string) ([]triage.SimilarTicket, error) {
	terms := queryTerms(subject + " " + description)
	if len(terms) == 0 {
		return []triage.SimilarTicket{}, nil
	}

	s.mu.RLock()
	var out []triage.SimilarTicket
	for _, t := range s.tickets {
		if t.Status != triage.StatusResolved {
			continue
		}
		score := 2*hits(terms, t.Subject) + hits(terms, t.Description)
		if score == 0 {
			continue
		}
		out = append(out, triage.SimilarTicket{
			ID:                    t.ID,
			Subject:               t.Subject,
			Category:              t.Category,
			Priority:              t.Priority,
			ResolutionTimeMinutes: cloneInt(t.ResolutionTimeMinutes),
			Score:                 float64(score),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > triage.SimilarTicketLimit {
		out = out[:triage.SimilarTicketLimit]
	}
	return out, nil
}

// SearchKB ranks articles by query-term hits over title (x3), content and tags (x2).
func (s *Store) SearchKB(_ context.Context, subject, description string) ([]triage.KBArticle, error) {
	terms := queryTerms(subject + " " + description)
	if len(terms) == 0 {
		return []triage.KBArticle{}, nil
	}

	s.mu.RLock()
	var out []triage.KBArticle
	for _, a := range s.articles {
		score := 3*hits(terms, a.Title) + hits(terms, a.Content) + 2*hits(terms, strings.Join(a.Tags, " "))
		if score == 0 {
			continue
		}
		out = append(out, triage.KBArticle{
			ID:           a.ID,
			Title:        a.Title,
			Category:     a.Category,
			HelpfulCount: a.HelpfulCount,
			Score:        float64(score),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > triage.KBArticleLimit {
		out = out[:triage.KBArticleLimit]
	}
	return out, nil
}

// GetCustomer returns a copy of the customer or triage.ErrNotFound.
func (s *Store) GetCustomer(_ context.Context, id string) (*triage.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, triage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListRecentTickets returns the customer's tickets, newest first.
func (s *Store) ListRecentTickets(_ context.Context, customerID string, limit int) ([]triage.Ticket, error) {
	s.mu.RLock()
	var out []triage.Ticket
	for _, t := range s.tickets {
		if t.CustomerID == customerID {
			out = append(out, *cloneTicket(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateTicket applies upd to the stored ticket. Unknown IDs return
// triage.ErrNotFound.
func (s *Store) UpdateTicket(_ context.Context, id string, upd triage.TicketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return triage.ErrNotFound
	}
	t.Category = upd.Category
	t.Priority = upd.Priority
	t.AssignedTeam = upd.AssignedTeam
	t.Status = upd.Status
	t.UpdatedAt = upd.UpdatedAt
	return nil
}

// AppendAction stores a copy of the audit record.
func (s *Store) AppendAction(_ context.Context, a *triage.AgentAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, *a)
	return nil
}

// ListActions returns the ticket's audit records in append order.
func (s *Store) ListActions(_ context.Context, ticketID string) ([]triage.AgentAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []triage.AgentAction{}
	for _, a := range s.actions {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

// OpenCountByTeam counts open tickets per assigned team. Unassigned tickets
// are not counted.
func (s *Store) OpenCountByTeam(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range s.tickets {
		if t.Status == triage.StatusOpen && t.AssignedTeam != "" {
			counts[t.AssignedTeam]++
		}
	}
	return counts, nil
}

func cloneTicket(t *triage.Ticket) *triage.Ticket {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	cp.ResolutionTimeMinutes = cloneInt(t.ResolutionTimeMinutes)
	return &cp
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// queryTerms splits text into distinct lower-case words.
func queryTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	slices.Sort(words)
	return slices.Compact(words)
}

// hits counts the query terms that occur as words in field.
func hits(terms []string, field string) int {
	words := queryTerms(field)
	n := 0
	for _, t := range terms {
		if _, ok := slices.BinarySearch(words, t); ok {
			n++
		}
	}
	return n
}

var (
	_ triage.Store       = (*Store)(nil)
	_ triage.Seeder      = (*Store)(nil)
	_ triage.AuditReader = (*Store)(nil)
)
