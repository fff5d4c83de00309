package triage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TriageBatch triages tickets independently with at most parallel in flight.
// Results keep input order. If ctx is cancelled, tickets not yet started are
// skipped and ctx's error is returned with the results gathered so far.
func (s *Service) TriageBatch(ctx context.Context, tickets []Ticket, parallel int) ([]*Result, error) {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]*Result, len(tickets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := range tickets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Triage(gctx, &tickets[i])
			return nil
		})
	}
	err := g.Wait()

	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

// TriageOpen triages up to limit open tickets from the ticket source.
func (s *Service) TriageOpen(ctx context.Context, limit, parallel int) ([]*Result, error) {
	if s.tickets == nil {
		return nil, ErrNoTicketSource
	}
	tickets, err := s.tickets.ListOpenTickets(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list open tickets: %w", err)
	}
	s.logger.Info(ctx, "triaging open tickets", "count", len(tickets), "parallel", parallel)
	return s.TriageBatch(ctx, tickets, parallel)
}
