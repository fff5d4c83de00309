// Package bootstrap assembles the configured ticket store, customer cache and
// notification sinks shared by the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/linnemanlabs/go-core/log"

	tc "github.com/linnemanlabs/ticketry/internal/cfg"
	"github.com/linnemanlabs/ticketry/internal/notify/kafka"
	"github.com/linnemanlabs/ticketry/internal/notify/slack"
	"github.com/linnemanlabs/ticketry/internal/postgres"
	"github.com/linnemanlabs/ticketry/internal/triage"
	"github.com/linnemanlabs/ticketry/internal/triage/esstore"
	"github.com/linnemanlabs/ticketry/internal/triage/memstore"
	"github.com/linnemanlabs/ticketry/internal/triage/pgstore"
	"github.com/linnemanlabs/ticketry/internal/triage/rediscache"
)

// Store is what every configured backend provides.
type Store interface {
	triage.Store
	triage.Seeder
	triage.AuditReader
}

// OpenStore builds the configured ticket backend. The returned close func is
// never nil.
func OpenStore(ctx context.Context, c *tc.Config, L log.Logger) (Store, func(), error) {
	switch c.Backend {
	case tc.BackendPostgres:
		if err := postgres.RunMigrations(c.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres store")
		return s, pool.Close, nil

	case tc.BackendElasticsearch:
		s, err := esstore.New(ctx, ElasticConfig(c))
		if err != nil {
			return nil, nil, fmt.Errorf("esstore init: %w", err)
		}
		if c.ElasticCreateIndex {
			if err := s.EnsureIndices(ctx); err != nil {
				return nil, nil, fmt.Errorf("esstore indices: %w", err)
			}
		}
		L.Info(ctx, "using elasticsearch store", "url", c.ElasticsearchURL, "cloud", c.ElasticCloudID != "")
		return s, func() {}, nil

	default:
		L.Info(ctx, "using in-memory store")
		return memstore.New(), func() {}, nil
	}
}

// ElasticConfig maps the elasticsearch settings to a client config. An API
// key takes precedence over basic auth.
func ElasticConfig(c *tc.Config) elasticsearch.Config {
	ec := elasticsearch.Config{
		CloudID: c.ElasticCloudID,
		APIKey:  c.ElasticAPIKey,
	}
	if c.ElasticsearchURL != "" {
		ec.Addresses = []string{c.ElasticsearchURL}
	}
	if c.ElasticAPIKey == "" {
		ec.Username = c.ElasticUsername
		ec.Password = c.ElasticPassword
	}
	return ec
}

// CacheCustomers wraps backend with the Redis customer cache when one is
// configured. The close func is never nil.
func CacheCustomers(ctx context.Context, c *tc.Config, backend triage.Backend, L log.Logger) (triage.Backend, func(), error) {
	if c.RedisURL == "" {
		return backend, func() {}, nil
	}
	cached, err := rediscache.New(c.RedisURL, backend, c.RedisTTL(), L)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	if err := cached.Ping(ctx); err != nil {
		// reads fall through to the backend while redis is down
		L.Warn(ctx, "redis unreachable at startup", "error", err)
	}
	L.Info(ctx, "customer cache enabled", "ttl", c.RedisTTL().String())
	return cached, func() { _ = cached.Close() }, nil
}

// SeedTarget returns the Seeder fixtures should be written through. When
// backend is the Redis customer cache, customer writes go through it so stale
// cached records are dropped.
func SeedTarget(s triage.Seeder, backend triage.Backend) triage.Seeder {
	cached, ok := backend.(*rediscache.Backend)
	if !ok {
		return s
	}
	return cachedSeeder{Seeder: s, cache: cached}
}

type cachedSeeder struct {
	triage.Seeder
	cache *rediscache.Backend
}

func (c cachedSeeder) PutCustomer(ctx context.Context, cust triage.Customer) error {
	return c.cache.PutCustomer(ctx, cust)
}

// Notifiers returns the configured notification sinks and their
// closers. The returned Notifier is nil when nothing is configured.
func Notifiers(ctx context.Context, c *tc.Config, L log.Logger) (triage.Notifier, []io.Closer) {
	var (
		ns      triage.Notifiers
		closers []io.Closer
	)
	if c.SlackWebhookURL != "" {
		ns = append(ns, slack.New(c.SlackWebhookURL))
		L.Info(ctx, "notifier enabled", "type", "slack")
	}
	if brokers := c.Brokers(); len(brokers) > 0 {
		p := kafka.New(brokers, c.KafkaTopic)
		ns = append(ns, p)
		closers = append(closers, p)
		L.Info(ctx, "notifier enabled", "type", "kafka", "brokers", brokers, "topic", c.KafkaTopic)
	}
	if len(ns) == 0 {
		return nil, nil
	}
	return ns, closers
}

// Seed loads fixtures from path into s.
func Seed(ctx context.Context, path string, s triage.Seeder, L log.Logger) error {
	f, err := triage.LoadFixtures(path)
	if err != nil {
		return err
	}
	if err := f.Seed(ctx, s); err != nil {
		return err
	}
	L.Info(ctx, "seeded fixtures", "path", path,
		"customers", len(f.Customers), "articles", len(f.Articles), "tickets", len(f.Tickets))
	return nil
}

// Vocabulary returns the scoring vocabulary named by c, or the embedded one.
func Vocabulary(ctx context.Context, c *tc.Config, L log.Logger) (*triage.Vocabulary, error) {
	if c.VocabularyFile == "" {
		return triage.DefaultVocabulary(), nil
	}
	v, err := triage.LoadVocabulary(c.VocabularyFile)
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	L.Info(ctx, "loaded vocabulary", "path", c.VocabularyFile, "categories", len(v.Categories))
	return v, nil
}
