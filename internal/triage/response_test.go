package triage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSuggestResponse(t *testing.T) {
	t.Parallel()

	tk := &Ticket{Subject: "Cannot log in"}
	d := Decision{Category: "account", Priority: PriorityHigh, AssignedTeam: "success"}

	withKB := SuggestResponse(tk, ContextBundle{KBArticles: []KBArticle{{ID: "KB-3", Title: "Resetting your password"}}}, d)
	want := "Thank you for contacting support. Based on your issue regarding 'Cannot log in', " +
		"we've categorized this as a account issue with high priority. " +
		"\n\nYou might find this helpful: Resetting your password (Article KB-3)" +
		"\n\nOur success team will review your ticket shortly."
	if withKB != want {
		t.Errorf("with KB:\n got %q\nwant %q", withKB, want)
	}

	without := SuggestResponse(tk, ContextBundle{}, d)
	if !strings.HasPrefix(without, "Thank you for contacting support. We've received your ticket regarding 'Cannot log in'.") ||
		!strings.HasSuffix(without, "Our success team will get back to you soon.") {
		t.Errorf("without KB = %q", without)
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	t.Parallel()

	r := Result{
		ID:       "01J",
		TicketID: "T1",
		Workflow: WorkflowResult{
			Actions: []WorkflowAction{
				{Kind: ActionTicketUpdate, Outcome: OutcomeFailed, Description: "Failed to update ticket: boom", Err: errors.New("boom")},
				{Kind: ActionAssignment, Outcome: OutcomeSimulated, Description: "Assigned to support team"},
			},
			Status:      WorkflowStatusSuccess,
			CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		ProcessingTime: 1500 * time.Millisecond,
		Stage:          StageComplete,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got struct {
		TicketID         string `json:"ticket_id"`
		ProcessingTimeMS int64  `json:"processing_time_ms"`
		Stage            string `json:"stage"`
		Workflow         struct {
			ActionsTaken []string `json:"actions_taken"`
			Actions      []struct {
				Kind    string `json:"kind"`
				Outcome string `json:"outcome"`
				Error   string `json:"error"`
			} `json:"actions"`
			Status string `json:"status"`
		} `json:"workflow_result"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.TicketID != "T1" || got.ProcessingTimeMS != 1500 || got.Stage != "complete" {
		t.Errorf("top level = %+v", got)
	}
	if len(got.Workflow.ActionsTaken) != 2 || got.Workflow.ActionsTaken[1] != "Assigned to support team" {
		t.Errorf("actions_taken = %v", got.Workflow.ActionsTaken)
	}
	if got.Workflow.Actions[0].Error != "boom" || got.Workflow.Actions[0].Outcome != "failed" {
		t.Errorf("actions[0] = %+v", got.Workflow.Actions[0])
	}
	if got.Workflow.Status != "success" {
		t.Errorf("status = %q", got.Workflow.Status)
	}
}
