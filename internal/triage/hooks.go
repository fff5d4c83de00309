package triage

import "time"

// Hooks are optional callbacks fired as a triage run progresses. Any nil
// field is skipped.
type Hooks struct {
	OnStage          func(stage Stage, duration time.Duration)
	OnRetrievalFault func(source string)
	OnAction         func(kind ActionKind, outcome Outcome)
	OnAuditFailure   func()
	OnComplete       func(r *Result)
}

func (h *Hooks) stage(s Stage, d time.Duration) {
	if h != nil && h.OnStage != nil {
		h.OnStage(s, d)
	}
}

func (h *Hooks) retrievalFault(source string) {
	if h != nil && h.OnRetrievalFault != nil {
		h.OnRetrievalFault(source)
	}
}

func (h *Hooks) action(a WorkflowAction) {
	if h != nil && h.OnAction != nil {
		h.OnAction(a.Kind, a.Outcome)
	}
}

func (h *Hooks) auditFailure() {
	if h != nil && h.OnAuditFailure != nil {
		h.OnAuditFailure()
	}
}

func (h *Hooks) complete(r *Result) {
	if h != nil && h.OnComplete != nil {
		h.OnComplete(r)
	}
}
