// Package pgstore provides a PostgreSQL implementation of triage.Store.
// Relevance search uses weighted tsvector columns and ts_rank.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ticketry/internal/triage/pgstore")

// ts_rank weights in {D, C, B, A} order, each at most 1.
const (
	// subject (A) counts double description (B)
	ticketRankWeights = `'{0.1, 0.2, 0.5, 1.0}'::float4[]`

	// title (A) x3, tags (B) x2, content (D) x1
	articleRankWeights = `'{0.333, 0.2, 0.667, 1.0}'::float4[]`
)

const ticketColumns = `ticket_id, subject, description, customer_id, status, category, priority,
	assigned_team, tags, created_at, updated_at, resolution_time_minutes`

// Store persists tickets, customers, KB articles and audit records in PostgreSQL.
// The schema is owned by postgres.RunMigrations.
type Store struct {
	pool *pgxpool.Pool
}

// New verifies the pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// SearchSimilar ranks resolved tickets against an OR query of the ticket words.
func (s *Store) SearchSimilar(ctx context.Context, subject, description string) ([]triage.SimilarTicket, error) {
	ctx, span := startSpan(ctx, "SearchSimilar", "SELECT")
	defer span.End()

	q := orQuery(subject + " " + description)
	if q == "" {
		return []triage.SimilarTicket{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, subject, category, priority, resolution_time_minutes,
		       ts_rank(`+ticketRankWeights+`, search, q) AS score
		FROM tickets, websearch_to_tsquery('english', $1) AS q
		WHERE status = $2 AND search @@ q
		ORDER BY score DESC, ticket_id
		LIMIT $3`,
		q, string(triage.StatusResolved), triage.SimilarTicketLimit,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("search tickets: %w", err))
	}
	defer rows.Close()

	out := []triage.SimilarTicket{}
	for rows.Next() {
		var (
			st       triage.SimilarTicket
			priority string
			score    float32
		)
		if err := rows.Scan(&st.ID, &st.Subject, &st.Category, &priority, &st.ResolutionTimeMinutes, &score); err != nil {
			return nil, fail(span, fmt.Errorf("scan similar ticket: %w", err))
		}
		st.Priority = triage.Priority(priority)
		st.Score = float64(score)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate similar tickets: %w", err))
	}
	span.SetAttributes(attribute.Int("ticketry.results", len(out)))
	return out, nil
}

// SearchKB ranks articles over title, tags and content.
func (s *Store) SearchKB(ctx context.Context, subject, description string) ([]triage.KBArticle, error) {
	ctx, span := startSpan(ctx, "SearchKB", "SELECT")
	defer span.End()

	q := orQuery(subject + " " + description)
	if q == "" {
		return []triage.KBArticle{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT article_id, title, category, helpful_count,
		       ts_rank(`+articleRankWeights+`, search, q) AS score
		FROM kb_articles, websearch_to_tsquery('english', $1) AS q
		WHERE search @@ q
		ORDER BY score DESC, article_id
		LIMIT $2`,
		q, triage.KBArticleLimit,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("search articles: %w", err))
	}
	defer rows.Close()

	out := []triage.KBArticle{}
	for rows.Next() {
		var (
			a     triage.KBArticle
			score float32
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Category, &a.HelpfulCount, &score); err != nil {
			return nil, fail(span, fmt.Errorf("scan article: %w", err))
		}
		a.Score = float64(score)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate articles: %w", err))
	}
	return out, nil
}

// GetCustomer returns triage.ErrNotFound for unknown ids.
func (s *Store) GetCustomer(ctx context.Context, id string) (*triage.Customer, error) {
	ctx, span := startSpan(ctx, "GetCustomer", "SELECT")
	defer span.End()

	var c triage.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT customer_id, plan, satisfaction_score, created_at FROM customers WHERE customer_id = $1`, id,
	).Scan(&c.ID, &c.Plan, &c.SatisfactionScore, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, triage.ErrNotFound
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("get customer: %w", err))
	}
	return &c, nil
}

// ListRecentTickets returns the customer's tickets, newest first.
func (s *Store) ListRecentTickets(ctx context.Context, customerID string, limit int) ([]triage.Ticket, error) {
	ctx, span := startSpan(ctx, "ListRecentTickets", "SELECT")
	defer span.End()

	ts, err := s.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE customer_id = $1 ORDER BY created_at DESC, ticket_id LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, fail(span, err)
	}
	return ts, nil
}

// GetTicket returns triage.ErrNotFound for unknown ids.
func (s *Store) GetTicket(ctx context.Context, id string) (*triage.Ticket, error) {
	ctx, span := startSpan(ctx, "GetTicket", "SELECT")
	defer span.End()

	ts, err := s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if len(ts) == 0 {
		return nil, triage.ErrNotFound
	}
	return &ts[0], nil
}

// ListOpenTickets returns open tickets, oldest first.
func (s *Store) ListOpenTickets(ctx context.Context, limit int) ([]triage.Ticket, error) {
	ctx, span := startSpan(ctx, "ListOpenTickets", "SELECT")
	defer span.End()

	ts, err := s.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE status = $1 ORDER BY created_at, ticket_id LIMIT $2`,
		string(triage.StatusOpen), limit,
	)
	if err != nil {
		return nil, fail(span, err)
	}
	return ts, nil
}

// UpdateTicket writes the decision fields. Unknown ids return triage.ErrNotFound.
func (s *Store) UpdateTicket(ctx context.Context, id string, upd triage.TicketUpdate) error {
	ctx, span := startSpan(ctx, "UpdateTicket", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE tickets
		 SET category = $2, priority = $3, assigned_team = $4, status = $5, updated_at = $6
		 WHERE ticket_id = $1`,
		id, upd.Category, string(upd.Priority), upd.AssignedTeam, string(upd.Status), upd.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("update ticket: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fail(span, fmt.Errorf("update ticket %s: %w", id, triage.ErrNotFound))
	}
	return nil
}

// AppendAction inserts an audit record. Records are never updated.
func (s *Store) AppendAction(ctx context.Context, a *triage.AgentAction) error {
	ctx, span := startSpan(ctx, "AppendAction", "INSERT")
	defer span.End()

	details, err := json.Marshal(a.Details)
	if err != nil {
		return fail(span, fmt.Errorf("marshal details: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_actions (action_id, ticket_id, agent_name, action_type, details, confidence_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ActionID, a.TicketID, a.AgentName, a.ActionType, details, a.ConfidenceScore, a.Timestamp,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert action: %w", err))
	}
	return nil
}

// ListActions returns the audit trail for a ticket, oldest first.
func (s *Store) ListActions(ctx context.Context, ticketID string) ([]triage.AgentAction, error) {
	ctx, span := startSpan(ctx, "ListActions", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT action_id::text, ticket_id, agent_name, action_type, details, confidence_score, created_at
		 FROM agent_actions WHERE ticket_id = $1 ORDER BY created_at, action_id`, ticketID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query actions: %w", err))
	}
	defer rows.Close()

	out := []triage.AgentAction{}
	for rows.Next() {
		var (
			a       triage.AgentAction
			details []byte
		)
		if err := rows.Scan(&a.ActionID, &a.TicketID, &a.AgentName, &a.ActionType, &details, &a.ConfidenceScore, &a.Timestamp); err != nil {
			return nil, fail(span, fmt.Errorf("scan action: %w", err))
		}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fail(span, fmt.Errorf("unmarshal details %s: %w", a.ActionID, err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate actions: %w", err))
	}
	return out, nil
}

// OpenCountByTeam counts open tickets per assigned team.
func (s *Store) OpenCountByTeam(ctx context.Context) (map[string]int, error) {
	ctx, span := startSpan(ctx, "OpenCountByTeam", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT assigned_team, count(*) FROM tickets
		 WHERE status = $1 AND assigned_team <> ''
		 GROUP BY assigned_team`, string(triage.StatusOpen))
	if err != nil {
		return nil, fail(span, fmt.Errorf("count by team: %w", err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			team string
			n    int
		)
		if err := rows.Scan(&team, &n); err != nil {
			return nil, fail(span, fmt.Errorf("scan team count: %w", err))
		}
		counts[team] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate team counts: %w", err))
	}
	return counts, nil
}

// PutTicket inserts or replaces a ticket. A zero CreatedAt defaults to now.
func (s *Store) PutTicket(ctx context.Context, t triage.Ticket) error {
	ctx, span := startSpan(ctx, "PutTicket", "UPSERT")
	defer span.End()

	now := time.Now().UTC()
	created, updated := orNow(t.CreatedAt, now), orNow(t.UpdatedAt, now)
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (ticket_id) DO UPDATE SET
			subject                 = EXCLUDED.subject,
			description             = EXCLUDED.description,
			customer_id             = EXCLUDED.customer_id,
			status                  = EXCLUDED.status,
			category                = EXCLUDED.category,
			priority                = EXCLUDED.priority,
			assigned_team           = EXCLUDED.assigned_team,
			tags                    = EXCLUDED.tags,
			created_at              = EXCLUDED.created_at,
			updated_at              = EXCLUDED.updated_at,
			resolution_time_minutes = EXCLUDED.resolution_time_minutes`,
		t.ID, t.Subject, t.Description, t.CustomerID, string(orOpen(t.Status)), t.Category, string(t.Priority),
		t.AssignedTeam, tags, created, updated, t.ResolutionTimeMinutes,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert ticket %s: %w", t.ID, err))
	}
	return nil
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(ctx context.Context, c triage.Customer) error {
	ctx, span := startSpan(ctx, "PutCustomer", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx, `INSERT INTO customers (customer_id, plan, satisfaction_score, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id) DO UPDATE SET
			plan               = EXCLUDED.plan,
			satisfaction_score = EXCLUDED.satisfaction_score`,
		c.ID, c.Plan, c.SatisfactionScore, orNow(c.CreatedAt, time.Now().UTC()),
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert customer %s: %w", c.ID, err))
	}
	return nil
}

// PutArticle inserts or replaces a KB article.
func (s *Store) PutArticle(ctx context.Context, a triage.Article) error {
	ctx, span := startSpan(ctx, "PutArticle", "UPSERT")
	defer span.End()

	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO kb_articles (article_id, title, content, category, tags, tags_text, helpful_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (article_id) DO UPDATE SET
			title         = EXCLUDED.title,
			content       = EXCLUDED.content,
			category      = EXCLUDED.category,
			tags          = EXCLUDED.tags,
			tags_text     = EXCLUDED.tags_text,
			helpful_count = EXCLUDED.helpful_count`,
		a.ID, a.Title, a.Content, a.Category, tags, strings.Join(tags, " "), a.HelpfulCount,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert article %s: %w", a.ID, err))
	}
	return nil
}

func (s *Store) queryTickets(ctx context.Context, query string, args ...any) ([]triage.Ticket, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	out := []triage.Ticket{}
	for rows.Next() {
		var (
			t                triage.Ticket
			status, priority string
		)
		if err := rows.Scan(
			&t.ID, &t.Subject, &t.Description, &t.CustomerID, &status, &t.Category, &priority,
			&t.AssignedTeam, &t.Tags, &t.CreatedAt, &t.UpdatedAt, &t.ResolutionTimeMinutes,
		); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Status = triage.TicketStatus(status)
		t.Priority = triage.Priority(priority)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return out, nil
}

// orQuery turns free text into a websearch_to_tsquery OR expression so any
// shared word matches, like a default match query.
func orQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := words[:0]
	for _, w := range words {
		if w != "or" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " or ")
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

func orOpen(s triage.TicketStatus) triage.TicketStatus {
	if s == "" {
		return triage.StatusOpen
	}
	return s
}

var (
	_ triage.Store       = (*Store)(nil)
	_ triage.Seeder      = (*Store)(nil)
	_ triage.AuditReader = (*Store)(nil)
)
