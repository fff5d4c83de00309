package triage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type recordingSeeder struct {
	customers, articles, tickets []string
	failOn                       string
}

func (r *recordingSeeder) PutCustomer(_ context.Context, c Customer) error {
	r.customers = append(r.customers, c.ID)
	return nil
}

func (r *recordingSeeder) PutArticle(_ context.Context, a Article) error {
	r.articles = append(r.articles, a.ID)
	return nil
}

func (r *recordingSeeder) PutTicket(_ context.Context, t Ticket) error {
	if t.ID == r.failOn {
		return errors.New("disk full")
	}
	r.tickets = append(r.tickets, t.ID)
	return nil
}

func TestLoadFixtures(t *testing.T) {
	t.Parallel()

	f, err := LoadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	if len(f.Customers) != 3 || len(f.Articles) != 3 || len(f.Tickets) != 4 {
		t.Fatalf("counts = %d/%d/%d", len(f.Customers), len(f.Articles), len(f.Tickets))
	}

	resolved := f.Tickets[0]
	if resolved.Status != StatusResolved || resolved.ResolutionTimeMinutes == nil || *resolved.ResolutionTimeMinutes != 95 {
		t.Errorf("ticket[0] = %+v", resolved)
	}
	if f.Tickets[2].ResolutionTimeMinutes != nil {
		t.Error("open ticket should have no resolution time")
	}
	if f.Customers[0].Plan != "enterprise" || f.Customers[0].CreatedAt.IsZero() {
		t.Errorf("customer[0] = %+v", f.Customers[0])
	}
	if got := f.Articles[1].Tags; len(got) != 2 || got[0] != "refund" {
		t.Errorf("article tags = %v", got)
	}
}

func TestLoadFixtures_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("tickets: {not: [a list"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixtures(bad); err == nil {
		t.Error("expected decode error")
	}
}

func TestFixtures_Seed(t *testing.T) {
	t.Parallel()

	f, err := LoadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	var s recordingSeeder
	if err := f.Seed(context.Background(), &s); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(s.customers) != 3 || len(s.articles) != 3 || len(s.tickets) != 4 {
		t.Errorf("seeded %v %v %v", s.customers, s.articles, s.tickets)
	}

	s = recordingSeeder{failOn: "TKT-0002"}
	err = f.Seed(context.Background(), &s)
	if err == nil {
		t.Fatal("expected seed error")
	}
	if len(s.tickets) != 1 {
		t.Errorf("seeding continued past failure: %v", s.tickets)
	}
}
