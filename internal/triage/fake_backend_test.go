package triage

import (
	"context"
	"sync"
)

// fakeBackend is an in-memory Backend whose canned results and errors are
// set per test.
type fakeBackend struct {
	mu sync.Mutex

	similar   []SimilarTicket
	articles  []KBArticle
	customers map[string]*Customer
	recent    map[string][]Ticket
	workload  map[string]int
	tickets   map[string]*Ticket

	similarErr  error
	kbErr       error
	customerErr error
	recentErr   error
	updateErr   error
	appendErr   error
	workloadErr error

	updates []TicketUpdate
	actions []*AgentAction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		customers: make(map[string]*Customer),
		recent:    make(map[string][]Ticket),
		tickets:   make(map[string]*Ticket),
	}
}

func (f *fakeBackend) SearchSimilar(_ context.Context, _, _ string) ([]SimilarTicket, error) {
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similar, nil
}

func (f *fakeBackend) SearchKB(_ context.Context, _, _ string) ([]KBArticle, error) {
	if f.kbErr != nil {
		return nil, f.kbErr
	}
	return f.articles, nil
}

func (f *fakeBackend) GetCustomer(_ context.Context, id string) (*Customer, error) {
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeBackend) ListRecentTickets(_ context.Context, customerID string, limit int) ([]Ticket, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	ts := f.recent[customerID]
	if len(ts) > limit {
		ts = ts[:limit]
	}
	return ts, nil
}

func (f *fakeBackend) UpdateTicket(_ context.Context, id string, upd TicketUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, upd)
	if t, ok := f.tickets[id]; ok {
		t.Category = upd.Category
		t.Priority = upd.Priority
		t.AssignedTeam = upd.AssignedTeam
		t.Status = upd.Status
		t.UpdatedAt = upd.UpdatedAt
	}
	return nil
}

func (f *fakeBackend) AppendAction(_ context.Context, a *AgentAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeBackend) OpenCountByTeam(_ context.Context) (map[string]int, error) {
	if f.workloadErr != nil {
		return nil, f.workloadErr
	}
	return f.workload, nil
}

func (f *fakeBackend) GetTicket(_ context.Context, id string) (*Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeBackend) ListOpenTickets(_ context.Context, limit int) ([]Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Ticket
	for _, t := range f.tickets {
		if t.Status == StatusOpen && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeBackend) actionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

// similarOf builds n similar tickets per category, in the given order.
func similarOf(cats ...string) []SimilarTicket {
	out := make([]SimilarTicket, 0, len(cats))
	for i, c := range cats {
		out = append(out, SimilarTicket{ID: "S" + string(rune('0'+i)), Category: c})
	}
	return out
}
