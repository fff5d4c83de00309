package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

var fixtures = filepath.Join("..", "..", "internal", "triage", "testdata", "fixtures.yaml")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestOpen_PrintsSummary(t *testing.T) {
	out, err := run(t, "--seed-file", fixtures, "open", "--limit", "5", "--parallel", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Triaged 2 open tickets")
	assert.Contains(t, out, "Ticket TKT-0003:")
	assert.Contains(t, out, "Ticket TKT-0004:")
	assert.Contains(t, out, "Average processing time:")
	// oldest first
	assert.Less(t, strings.Index(out, "TKT-0003"), strings.Index(out, "TKT-0004"))
}

func TestOpen_Empty(t *testing.T) {
	out, err := run(t, "open")
	require.NoError(t, err)
	assert.Equal(t, "No open tickets to triage.\n", out)
}

func TestOpen_RejectsBadFlags(t *testing.T) {
	_, err := run(t, "open", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")

	_, err = run(t, "open", "--parallel", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--parallel")
}

func TestTicket_PrintsJSON(t *testing.T) {
	out, err := run(t, "--seed-file", fixtures, "ticket", "TKT-0003")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "TKT-0003", got["ticket_id"])
}

func TestTicket_Unknown(t *testing.T) {
	_, err := run(t, "--seed-file", fixtures, "ticket", "TKT-9999")
	require.Error(t, err)
	assert.ErrorIs(t, err, triage.ErrNotFound)
}

func TestTicket_RequiresID(t *testing.T) {
	_, err := run(t, "ticket")
	require.Error(t, err)
}

func TestSeed(t *testing.T) {
	out, err := run(t, "seed", fixtures)
	require.NoError(t, err)
	assert.Contains(t, out, "into memory backend")

	_, err = run(t, "seed", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestActions_Empty(t *testing.T) {
	out, err := run(t, "actions", "TKT-0003")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "--backend", "postgres", "open")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	failed := triage.WorkflowResult{Actions: []triage.WorkflowAction{
		{Kind: triage.ActionNotification, Outcome: triage.OutcomeFailed},
	}}
	results := []*triage.Result{
		{
			TicketID:       "T-1",
			Decision:       triage.Decision{Category: "billing", Confidence: 0.8, Priority: triage.PriorityMedium, AssignedTeam: "finance"},
			ProcessingTime: 10 * time.Millisecond,
		},
		{
			TicketID:       "T-2",
			Decision:       triage.Decision{Category: "technical", Confidence: 0.4, Priority: triage.PriorityCritical, AssignedTeam: "engineering", NeedsHumanReview: true},
			ProcessingTime: 30 * time.Millisecond,
			Workflow:       failed,
		},
	}

	var buf bytes.Buffer
	writeSummary(&buf, results)
	out := buf.String()

	assert.Contains(t, out, "Category: billing (confidence: 80.0%)")
	assert.Contains(t, out, "Team: engineering")
	assert.Equal(t, 1, strings.Count(out, "Flagged for human review"))
	assert.Contains(t, out, "Failed actions: 1")
	assert.Contains(t, out, "Average processing time: 20ms")
}
