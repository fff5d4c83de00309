package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"
)

const (
	// DefaultAgentName identifies this pipeline on audit records.
	DefaultAgentName = "intelligent_triage_agent"

	actionTypeTriage = "triage"
)

// Auditor appends one AgentAction per triage decision.
type Auditor struct {
	backend   Backend
	agentName string
	logger    log.Logger
	hooks     *Hooks
	now       func() time.Time
}

// NewAuditor creates an Auditor. An empty agentName uses DefaultAgentName.
func NewAuditor(backend Backend, agentName string, logger log.Logger, hooks *Hooks) *Auditor {
	if agentName == "" {
		agentName = DefaultAgentName
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Auditor{backend: backend, agentName: agentName, logger: logger, hooks: hooks, now: time.Now}
}

// Record writes the audit record and reports whether it was stored. A write
// failure is logged, never returned.
func (a *Auditor) Record(ctx context.Context, ticketID string, d Decision) (*AgentAction, bool) {
	action := &AgentAction{
		ActionID:   uuid.NewString(),
		TicketID:   ticketID,
		AgentName:  a.agentName,
		ActionType: actionTypeTriage,
		Details: ActionDetails{
			Category:     d.Category,
			Priority:     d.Priority,
			AssignedTeam: d.AssignedTeam,
			NeedsReview:  d.NeedsHumanReview,
		},
		ConfidenceScore: d.Confidence,
		Timestamp:       a.now(),
	}

	if err := a.backend.AppendAction(ctx, action); err != nil {
		a.hooks.auditFailure()
		a.logger.Error(ctx, err, "failed to append audit record", "ticket_id", ticketID, "action_id", action.ActionID)
		return action, false
	}
	return action, true
}
