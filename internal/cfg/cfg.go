package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

// Backend names accepted by -backend.
const (
	BackendMemory        = "memory"
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
)

// Config holds the application settings that sit alongside the go-core
// package configs. It satisfies cfg.Registerable and cfg.Validatable.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APITokens             string

	Backend            string
	DatabaseURL        string
	ElasticsearchURL   string
	ElasticCloudID     string
	ElasticAPIKey      string
	ElasticUsername    string
	ElasticPassword    string
	ElasticCreateIndex bool
	RedisURL           string
	RedisTTLSeconds    int
	SlackWebhookURL    string
	KafkaBrokers       string
	KafkaTopic         string
	VocabularyFile     string
	AgentName          string
	SeedFile           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APITokens, "api-tokens", "", "comma-separated bearer tokens accepted on /api/v1 (empty = no auth)")

	fs.StringVar(&c.Backend, "backend", BackendMemory, "ticket backend: memory, postgres or elasticsearch")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (postgres backend)")
	fs.StringVar(&c.ElasticsearchURL, "elasticsearch-url", "", "Elasticsearch URL (elasticsearch backend)")
	fs.StringVar(&c.ElasticCloudID, "elastic-cloud-id", "", "Elastic Cloud deployment ID, used instead of a URL")
	fs.StringVar(&c.ElasticAPIKey, "elastic-api-key", "", "Elasticsearch API key")
	fs.StringVar(&c.ElasticUsername, "elastic-username", "elastic", "Elasticsearch basic auth user when no API key is set")
	fs.StringVar(&c.ElasticPassword, "elastic-password", "", "Elasticsearch basic auth password when no API key is set")
	fs.BoolVar(&c.ElasticCreateIndex, "elastic-create-indices", true, "create missing Elasticsearch indices at startup")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis URL for the customer cache (empty = no cache)")
	fs.IntVar(&c.RedisTTLSeconds, "redis-ttl-seconds", 600, "customer cache TTL in seconds (1..86400)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-priority alerts")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", "", "comma-separated Kafka brokers for routing events (empty = disabled)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "ticket-routing", "Kafka topic for routing events")
	fs.StringVar(&c.VocabularyFile, "vocabulary-file", "", "YAML scoring vocabulary (empty = built-in)")
	fs.StringVar(&c.AgentName, "agent-name", triage.DefaultAgentName, "agent name written to audit records")
	fs.StringVar(&c.SeedFile, "seed-file", "", "YAML fixtures loaded into the backend at startup")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendElasticsearch:
		errs = append(errs, c.validateElastic()...)
	default:
		errs = append(errs, fmt.Errorf("invalid BACKEND %q (must be memory, postgres or elasticsearch)", c.Backend))
	}

	if c.RedisURL != "" && (c.RedisTTLSeconds <= 0 || c.RedisTTLSeconds > 86400) {
		errs = append(errs, fmt.Errorf("invalid REDIS_TTL_SECONDS %d (must be 1..86400)", c.RedisTTLSeconds))
	}

	if c.KafkaBrokers != "" && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if c.AgentName == "" {
		errs = append(errs, errors.New("AGENT_NAME is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) validateElastic() []error {
	switch {
	case c.ElasticsearchURL == "" && c.ElasticCloudID == "":
		return []error{errors.New("ELASTICSEARCH_URL or ELASTIC_CLOUD_ID is required for the elasticsearch backend")}
	case c.ElasticsearchURL == "" && c.ElasticAPIKey == "":
		return []error{errors.New("ELASTIC_API_KEY is required with ELASTIC_CLOUD_ID")}
	case c.ElasticAPIKey == "" && c.ElasticPassword == "":
		return []error{errors.New("ELASTIC_PASSWORD is required when ELASTIC_API_KEY is not set")}
	}
	return nil
}

// Tokens returns the configured API tokens, trimmed, without empties.
func (c *Config) Tokens() []string {
	return splitList(c.APITokens)
}

// Brokers returns the configured Kafka brokers.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// RedisTTL returns the customer cache TTL.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSeconds) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
