package triage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is a bundle of reference data for seeding a store.
type Fixtures struct {
	Customers []Customer `yaml:"customers"`
	Articles  []Article  `yaml:"articles"`
	Tickets   []Ticket   `yaml:"tickets"`
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return &f, nil
}

// Seed writes every fixture record through s, stopping at the first error.
func (f *Fixtures) Seed(ctx context.Context, s Seeder) error {
	for _, c := range f.Customers {
		if err := s.PutCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, a := range f.Articles {
		if err := s.PutArticle(ctx, a); err != nil {
			return fmt.Errorf("seed article %s: %w", a.ID, err)
		}
	}
	for _, t := range f.Tickets {
		if err := s.PutTicket(ctx, t); err != nil {
			return fmt.Errorf("seed ticket %s: %w", t.ID, err)
		}
	}
	return nil
}
