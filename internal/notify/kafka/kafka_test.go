package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNotify_WritesKeyedEvent(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	p := &Publisher{w: fw}
	n := &triage.Notification{
		Kind:       triage.NotifyQueue,
		TicketID:   "TKT-7",
		Subject:    "Need invoice",
		Team:       "billing",
		Category:   "billing",
		Priority:   triage.PriorityLow,
		Confidence: 1,
		Timestamp:  time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}

	if err := p.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(fw.msgs))
	}

	msg := fw.msgs[0]
	if string(msg.Key) != "billing" {
		t.Errorf("key = %q, want billing", msg.Key)
	}
	var got triage.Notification
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if got.TicketID != "TKT-7" || got.Kind != triage.NotifyQueue || !got.Timestamp.Equal(n.Timestamp) {
		t.Errorf("event = %+v", got)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["kind"] != "queue" || headers["priority"] != "low" {
		t.Errorf("headers = %v", headers)
	}
}

func TestNotify_WriteError(t *testing.T) {
	t.Parallel()

	p := &Publisher{w: &fakeWriter{err: errors.New("leader not available")}}
	err := p.Notify(context.Background(), &triage.Notification{TicketID: "TKT-9", Team: "engineering"})
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "kafka: write event for ticket TKT-9: leader not available"; err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}

func TestNew_ConfiguresWriter(t *testing.T) {
	t.Parallel()

	p := New([]string{"localhost:9092"}, "ticket-routing")
	w, ok := p.w.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer type %T", p.w)
	}
	if w.Topic != "ticket-routing" {
		t.Errorf("topic = %q", w.Topic)
	}
	if w.Addr.String() != "localhost:9092" {
		t.Errorf("addr = %q", w.Addr.String())
	}

	fw := &fakeWriter{}
	if err := (&Publisher{w: fw}).Close(); err != nil || !fw.closed {
		t.Errorf("Close: err=%v closed=%v", err, fw.closed)
	}
}
