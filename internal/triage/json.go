package triage

import (
	"encoding/json"
	"time"
)

type actionJSON struct {
	Kind        ActionKind `json:"kind"`
	Outcome     Outcome    `json:"outcome"`
	Description string     `json:"description"`
	Error       string     `json:"error,omitempty"`
}

// MarshalJSON renders actions both as the plain text list and as typed entries.
func (w WorkflowResult) MarshalJSON() ([]byte, error) {
	actions := make([]actionJSON, 0, len(w.Actions))
	for _, a := range w.Actions {
		aj := actionJSON{Kind: a.Kind, Outcome: a.Outcome, Description: a.Description}
		if a.Err != nil {
			aj.Error = a.Err.Error()
		}
		actions = append(actions, aj)
	}
	return json.Marshal(struct {
		ActionsTaken []string     `json:"actions_taken"`
		Actions      []actionJSON `json:"actions"`
		Status       string       `json:"status"`
		Timestamp    time.Time    `json:"timestamp"`
	}{
		ActionsTaken: w.Descriptions(),
		Actions:      actions,
		Status:       w.Status,
		Timestamp:    w.CompletedAt,
	})
}

// MarshalJSON adds processing_time_ms to the encoded result.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		ProcessingTimeMS int64 `json:"processing_time_ms"`
	}{
		plain:            plain(r),
		ProcessingTimeMS: r.ProcessingTime.Milliseconds(),
	})
}
