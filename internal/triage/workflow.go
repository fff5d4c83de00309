package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// WorkflowStatusSuccess is the envelope status of every workflow run.
// Individual step failures are recorded on the actions instead.
const WorkflowStatusSuccess = "success"

// NotificationKind distinguishes paging alerts from plain queue routing.
type NotificationKind string

const (
	NotifyAlert NotificationKind = "alert"
	NotifyQueue NotificationKind = "queue"
)

// Notification is what notifiers receive for a routed ticket.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	TicketID    string           `json:"ticket_id"`
	Subject     string           `json:"subject"`
	Team        string           `json:"team"`
	Category    string           `json:"category"`
	Priority    Priority         `json:"priority"`
	Confidence  float64          `json:"confidence"`
	NeedsReview bool             `json:"needs_review"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Notifier delivers a routing notification to an external channel.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Notifiers fans a notification out to every member and joins their errors.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(ctx context.Context, n *Notification) error {
	var errs []error
	for _, nf := range ns {
		if nf == nil {
			continue
		}
		if err := nf.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Executor applies a decision: ticket update, assignment, notification and
// review flag. Each step is isolated from the others' failures.
type Executor struct {
	backend  Backend
	notifier Notifier
	logger   log.Logger
	hooks    *Hooks
	now      func() time.Time
}

// NewExecutor creates an Executor. notifier may be nil, in which case
// notifications are recorded as simulated.
func NewExecutor(backend Backend, notifier Notifier, logger log.Logger, hooks *Hooks) *Executor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Executor{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		hooks:    hooks,
		now:      time.Now,
	}
}

// Execute runs the workflow for t. The returned envelope status is always
// WorkflowStatusSuccess and the action list is never empty.
func (e *Executor) Execute(ctx context.Context, t *Ticket, d Decision) WorkflowResult {
	actions := []WorkflowAction{
		e.updateTicket(ctx, t, d),
		{
			Kind:        ActionAssignment,
			Outcome:     OutcomeSimulated,
			Description: fmt.Sprintf("Assigned to %s team", d.AssignedTeam),
		},
		e.notify(ctx, t, d),
	}

	if d.NeedsHumanReview {
		actions = append(actions, WorkflowAction{
			Kind:        ActionReviewFlag,
			Outcome:     OutcomeSimulated,
			Description: "Flagged for human review (low confidence or critical priority)",
		})
	}

	for _, a := range actions {
		e.hooks.action(a)
	}

	return WorkflowResult{
		Actions:     actions,
		Status:      WorkflowStatusSuccess,
		CompletedAt: e.now(),
	}
}

func (e *Executor) updateTicket(ctx context.Context, t *Ticket, d Decision) WorkflowAction {
	upd := TicketUpdate{
		Category:     d.Category,
		Priority:     d.Priority,
		AssignedTeam: d.AssignedTeam,
		Status:       StatusInProgress,
		UpdatedAt:    e.now(),
	}
	if err := e.backend.UpdateTicket(ctx, t.ID, upd); err != nil {
		e.logger.Warn(ctx, "ticket update failed", "ticket_id", t.ID, "error", err.Error())
		return WorkflowAction{
			Kind:        ActionTicketUpdate,
			Outcome:     OutcomeFailed,
			Description: fmt.Sprintf("Failed to update ticket: %v", err),
			Err:         err,
		}
	}
	return WorkflowAction{
		Kind:        ActionTicketUpdate,
		Outcome:     OutcomeSucceeded,
		Description: fmt.Sprintf("Updated ticket fields (category=%s, priority=%s)", d.Category, d.Priority),
	}
}

func (e *Executor) notify(ctx context.Context, t *Ticket, d Decision) WorkflowAction {
	kind := NotifyQueue
	desc := fmt.Sprintf("Added to %s queue", d.AssignedTeam)
	if d.Priority == PriorityCritical || d.Priority == PriorityHigh {
		kind = NotifyAlert
		desc = fmt.Sprintf("Sent high-priority alert to %s team", d.AssignedTeam)
	}

	a := WorkflowAction{Kind: ActionNotification, Outcome: OutcomeSimulated, Description: desc}
	if e.notifier == nil {
		return a
	}

	err := e.notifier.Notify(ctx, &Notification{
		Kind:        kind,
		TicketID:    t.ID,
		Subject:     t.Subject,
		Team:        d.AssignedTeam,
		Category:    d.Category,
		Priority:    d.Priority,
		Confidence:  d.Confidence,
		NeedsReview: d.NeedsHumanReview,
		Timestamp:   e.now(),
	})
	if err != nil {
		e.logger.Warn(ctx, "notification failed", "ticket_id", t.ID, "kind", string(kind), "error", err.Error())
		a.Outcome = OutcomeFailed
		a.Err = err
		return a
	}
	a.Outcome = OutcomeSucceeded
	return a
}
