package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/ticketry/internal/triage/pgstore.(*Store).SearchKB", "(*Store).SearchKB"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperationName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag, sql, want string
	}{
		{"UPDATE 1", "update tickets set x = 1", "UPDATE"},
		{"", "select 1", "SELECT"},
		{"", "  ", "UNKNOWN"},
		{"INSERT 0 1", "", "INSERT"},
	}
	for _, tt := range tests {
		if got := operationName(tt.tag, tt.sql); got != tt.want {
			t.Errorf("operationName(%q, %q) = %q, want %q", tt.tag, tt.sql, got, tt.want)
		}
	}
}

func TestRouteFromContext(t *testing.T) {
	t.Parallel()

	if got := routeFromContext(context.Background()); got != "none" {
		t.Errorf("route = %q, want none", got)
	}

	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{"/api/v1/tickets/{id}/triage"}
	ctx := context.WithValue(context.Background(), chi.RouteCtxKey, rc)
	if got := routeFromContext(ctx); got != "/api/v1/tickets/{id}/triage" {
		t.Errorf("route = %q", got)
	}
}

// Tests below touch the package-level observer and are not parallel.

func TestSetQueryObserver(t *testing.T) {
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	}))

	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "SELECT", "none", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("expected nil observer after Set(nil)")
	}
}

func TestLoggingTracer_ObservesQueries(t *testing.T) {
	defer SetQueryObserver(nil)
	defer SetSlowQueryThreshold(0)
	SetSlowQueryThreshold(time.Hour)

	type obs struct{ op, route, outcome string }
	var got []obs
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, op, route, outcome string, _ time.Duration) {
		got = append(got, obs{op, route, outcome})
	}))

	tr := wrapQueryTracer(nil)
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "update tickets set status = $1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock")})

	want := []obs{{"SELECT", "none", "ok"}, {"UPDATE", "none", "error"}}
	if len(got) != len(want) {
		t.Fatalf("observed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("obs[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoggingTracer_EndWithoutStart(t *testing.T) {
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(context.Context, string, string, string, time.Duration) { called = true }))

	wrapQueryTracer(nil).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	if called {
		t.Error("observer called without a matching start")
	}
}
