package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

func alert() *triage.Notification {
	return &triage.Notification{
		Kind:        triage.NotifyAlert,
		TicketID:    "TKT-0042",
		Subject:     "API integration not working",
		Team:        "engineering",
		Category:    "technical",
		Priority:    triage.PriorityCritical,
		Confidence:  0.8,
		NeedsReview: true,
		Timestamp:   time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL).Notify(context.Background(), alert()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}
	// header, divider, fields, subject, context
	if len(blocks) != 5 {
		t.Errorf("blocks count = %d, want 5", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Critical ticket for engineering") {
		t.Errorf("header text = %q", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should contain red circle for critical priority")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var texts []string
	for _, f := range fields {
		texts = append(texts, f.(map[string]any)["text"].(string))
	}
	joined := strings.Join(texts, "|")
	for _, want := range []string{"*Ticket:* TKT-0042", "*Confidence:* 80%", "*Human review:* yes"} {
		if !strings.Contains(joined, want) {
			t.Errorf("fields %q missing %q", joined, want)
		}
	}

	ctxText := blocks[4].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context text = %q", ctxText)
	}
}

func TestNotify_SkipsQueueAndEmptyURL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := alert()
	q.Kind = triage.NotifyQueue
	if err := New(srv.URL).Notify(context.Background(), q); err != nil {
		t.Fatalf("Notify queue: %v", err)
	}
	if err := New("").Notify(context.Background(), alert()); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("webhook called %d times, want 0", n)
	}
}

func TestNotify_TruncatesLongSubject(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := alert()
	n.Subject = strings.Repeat("x", 4000)
	if err := New(srv.URL).Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks := got["blocks"].([]any)
	text := blocks[3].(map[string]any)["text"].(map[string]any)["text"].(string)
	if len(text) > maxSubjectLen+len("*Subject*\n") {
		t.Errorf("subject text length = %d", len(text))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated subject to end with ...")
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "héllo", 10, "héllo"},
		{"two byte runes", strings.Repeat("é", 10), 10, "ééé..."},
		{"three byte runes", strings.Repeat("日", 10), 10, "日日..."},
		{"ascii", strings.Repeat("x", 20), 10, "xxxxxxx..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := truncate(tt.in, tt.limit)
			if got != tt.want {
				t.Errorf("truncate = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) || len(got) > tt.limit {
				t.Errorf("truncate = %q: invalid UTF-8 or over %d bytes", got, tt.limit)
			}
		})
	}
}

func TestNotify_MultibyteSubjectStaysValid(t *testing.T) {
	t.Parallel()

	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := alert()
	n.Subject = strings.Repeat("é", 2000)
	if err := New(srv.URL).Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if bytes.Contains(raw, []byte(`\ufffd`)) || bytes.ContainsRune(raw, utf8.RuneError) {
		t.Error("subject was cut inside a rune")
	}
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := New(srv.URL).Notify(context.Background(), alert())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestPriorityEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    triage.Priority
		want string
	}{
		{triage.PriorityCritical, "\U0001f534"},
		{triage.PriorityHigh, "\U0001f7e0"},
		{triage.PriorityMedium, "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}
	for _, tt := range tests {
		if got := priorityEmoji(tt.p); got != tt.want {
			t.Errorf("priorityEmoji(%q) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("TKT-1", "critical", "Cannot login", "engineering")
	f.Add("", "", "", "")
	f.Add("<@U123>", "high", "*bold* _italic_ ~strike~", "billing")
	f.Add("id\x00\x01", "pri\nline", "subject\ttab", "t\x00am")
	f.Add(strings.Repeat("A", 5000), "low", strings.Repeat("x", 10000), "support")

	f.Fuzz(func(t *testing.T, id, priority, subject, team string) {
		msg := buildMessage(&triage.Notification{
			Kind:     triage.NotifyAlert,
			TicketID: id,
			Priority: triage.Priority(priority),
			Subject:  subject,
			Team:     team,
		})

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		if blocks, ok := decoded["blocks"].([]any); !ok || len(blocks) != 5 {
			t.Fatalf("blocks = %v", decoded["blocks"])
		}
	})
}
