// Package slack posts high-priority ticket alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

const (
	maxSubjectLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends alert notifications to a Slack webhook. Queue notifications
// are ignored.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts an alert to the configured webhook.
func (n *Notifier) Notify(ctx context.Context, note *triage.Notification) error {
	if n.webhookURL == "" || note.Kind != triage.NotifyAlert {
		return nil
	}

	body, err := json.Marshal(buildMessage(note))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(n *triage.Notification) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("%s priority ticket %s routed to %s", n.Priority, n.TicketID, n.Team),
		"blocks": []map[string]any{
			headerBlock(n),
			{"type": "divider"},
			fieldsBlock(n),
			subjectBlock(n),
			contextBlock(n),
		},
	}
}

func headerBlock(n *triage.Notification) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s ticket for %s", priorityEmoji(n.Priority), titleCase(string(n.Priority)), n.Team),
		},
	}
}

func fieldsBlock(n *triage.Notification) map[string]any {
	review := "no"
	if n.NeedsReview {
		review = "yes"
	}
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Ticket:* %s", n.TicketID)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", n.Priority)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Category:* %s", n.Category)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Team:* %s", n.Team)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Confidence:* %.0f%%", n.Confidence*100)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Human review:* %s", review)},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func subjectBlock(n *triage.Notification) map[string]any {
	text := truncate(n.Subject, maxSubjectLen)
	if text == "" {
		text = "_No subject._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Subject*\n%s", text),
		},
	}
}

func contextBlock(n *triage.Notification) map[string]any {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("ticketry • ticket %s • %s", n.TicketID, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func priorityEmoji(p triage.Priority) string {
	switch p {
	case triage.PriorityCritical:
		return "\U0001f534" // red circle
	case triage.PriorityHigh:
		return "\U0001f7e0" // orange circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate caps s at limit bytes, cutting on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
