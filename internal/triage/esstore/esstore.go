// Package esstore provides an Elasticsearch implementation of triage.Store.
// Relevance comes from multi_match queries with per-field boosts.
package esstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

// Index names.
const (
	TicketsIndex   = "support_tickets"
	ArticlesIndex  = "knowledge_base"
	CustomersIndex = "customers"
	ActionsIndex   = "agent_actions"
)

// maxActions caps a single audit-trail read.
const maxActions = 100

var tracer = otel.Tracer("github.com/linnemanlabs/ticketry/internal/triage/esstore")

// Store talks to an Elasticsearch cluster through the typed esapi client.
type Store struct {
	es *elasticsearch.Client
}

// New builds a client from cfg and pings the cluster.
func New(ctx context.Context, cfg elasticsearch.Config) (*Store, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := decode(res, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{es: es}, nil
}

// EnsureIndices creates any missing index with its mapping. Existing
// indices are left alone.
func (s *Store) EnsureIndices(ctx context.Context) error {
	for _, name := range []string{TicketsIndex, ArticlesIndex, CustomersIndex, ActionsIndex} {
		res, err := s.es.Indices.Exists([]string{name}, s.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		body, err := json.Marshal(map[string]any{"mappings": mappings[name]})
		if err != nil {
			return fmt.Errorf("marshal mapping %s: %w", name, err)
		}
		res, err = s.es.Indices.Create(name,
			s.es.Indices.Create.WithContext(ctx),
			s.es.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		if err := decode(res, nil); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

// SearchSimilar matches resolved tickets on subject (boosted) and description.
func (s *Store) SearchSimilar(ctx context.Context, subject, description string) ([]triage.SimilarTicket, error) {
	ctx, span := startSpan(ctx, "SearchSimilar", "search")
	defer span.End()

	text := strings.TrimSpace(subject + " " + description)
	if text == "" {
		return []triage.SimilarTicket{}, nil
	}

	q := map[string]any{
		"size": triage.SimilarTicketLimit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"multi_match": map[string]any{
						"query":  text,
						"fields": []string{"subject^2", "description"},
						"type":   "best_fields",
					}},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"status": string(triage.StatusResolved)}},
				},
			},
		},
	}

	var resp searchResponse[triage.Ticket]
	if err := s.search(ctx, TicketsIndex, q, &resp); err != nil {
		return nil, fail(span, fmt.Errorf("search tickets: %w", err))
	}

	out := make([]triage.SimilarTicket, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, triage.SimilarTicket{
			ID:                    h.Source.ID,
			Subject:               h.Source.Subject,
			Category:              h.Source.Category,
			Priority:              h.Source.Priority,
			ResolutionTimeMinutes: h.Source.ResolutionTimeMinutes,
			Score:                 h.Score,
		})
	}
	span.SetAttributes(attribute.Int("ticketry.results", len(out)))
	return out, nil
}

// SearchKB matches articles on title, content and tags.
func (s *Store) SearchKB(ctx context.Context, subject, description string) ([]triage.KBArticle, error) {
	ctx, span := startSpan(ctx, "SearchKB", "search")
	defer span.End()

	text := strings.TrimSpace(subject + " " + description)
	if text == "" {
		return []triage.KBArticle{}, nil
	}

	q := map[string]any{
		"size": triage.KBArticleLimit,
		"query": map[string]any{"multi_match": map[string]any{
			"query":  text,
			"fields": []string{"title^3", "content", "tags^2"},
		}},
	}

	var resp searchResponse[triage.Article]
	if err := s.search(ctx, ArticlesIndex, q, &resp); err != nil {
		return nil, fail(span, fmt.Errorf("search articles: %w", err))
	}

	out := make([]triage.KBArticle, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, triage.KBArticle{
			ID:           h.Source.ID,
			Title:        h.Source.Title,
			Category:     h.Source.Category,
			HelpfulCount: h.Source.HelpfulCount,
			Score:        h.Score,
		})
	}
	return out, nil
}

// GetCustomer returns triage.ErrNotFound for unknown ids.
func (s *Store) GetCustomer(ctx context.Context, id string) (*triage.Customer, error) {
	ctx, span := startSpan(ctx, "GetCustomer", "get")
	defer span.End()

	var c triage.Customer
	if err := s.get(ctx, CustomersIndex, id, &c); err != nil {
		return nil, failUnlessNotFound(span, fmt.Errorf("get customer %s: %w", id, err))
	}
	return &c, nil
}

// ListRecentTickets returns the customer's tickets, newest first.
func (s *Store) ListRecentTickets(ctx context.Context, customerID string, limit int) ([]triage.Ticket, error) {
	ctx, span := startSpan(ctx, "ListRecentTickets", "search")
	defer span.End()

	ts, err := s.searchTickets(ctx, map[string]any{
		"size":  limit,
		"query": map[string]any{"term": map[string]any{"customer_id": customerID}},
		"sort":  []any{map[string]any{"created_at": "desc"}},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return ts, nil
}

// GetTicket returns triage.ErrNotFound for unknown ids.
func (s *Store) GetTicket(ctx context.Context, id string) (*triage.Ticket, error) {
	ctx, span := startSpan(ctx, "GetTicket", "get")
	defer span.End()

	var t triage.Ticket
	if err := s.get(ctx, TicketsIndex, id, &t); err != nil {
		return nil, failUnlessNotFound(span, fmt.Errorf("get ticket %s: %w", id, err))
	}
	return &t, nil
}

// ListOpenTickets returns open tickets, oldest first.
func (s *Store) ListOpenTickets(ctx context.Context, limit int) ([]triage.Ticket, error) {
	ctx, span := startSpan(ctx, "ListOpenTickets", "search")
	defer span.End()

	ts, err := s.searchTickets(ctx, map[string]any{
		"size":  limit,
		"query": map[string]any{"term": map[string]any{"status": string(triage.StatusOpen)}},
		"sort":  []any{map[string]any{"created_at": "asc"}},
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return ts, nil
}

// UpdateTicket applies a partial document update. Unknown ids return
// triage.ErrNotFound.
func (s *Store) UpdateTicket(ctx context.Context, id string, upd triage.TicketUpdate) error {
	ctx, span := startSpan(ctx, "UpdateTicket", "update")
	defer span.End()

	body, err := json.Marshal(map[string]any{"doc": upd})
	if err != nil {
		return fail(span, fmt.Errorf("marshal update: %w", err))
	}
	res, err := s.es.Update(TicketsIndex, id, bytes.NewReader(body), s.es.Update.WithContext(ctx))
	if err != nil {
		return fail(span, fmt.Errorf("update ticket %s: %w", id, err))
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return fmt.Errorf("update ticket %s: %w", id, triage.ErrNotFound)
	}
	if err := decode(res, nil); err != nil {
		return fail(span, fmt.Errorf("update ticket %s: %w", id, err))
	}
	return nil
}

// AppendAction indexes an audit record under its action id.
func (s *Store) AppendAction(ctx context.Context, a *triage.AgentAction) error {
	ctx, span := startSpan(ctx, "AppendAction", "index")
	defer span.End()

	if err := s.put(ctx, ActionsIndex, a.ActionID, a, ""); err != nil {
		return fail(span, fmt.Errorf("index action: %w", err))
	}
	return nil
}

// ListActions returns the audit trail for a ticket, oldest first.
func (s *Store) ListActions(ctx context.Context, ticketID string) ([]triage.AgentAction, error) {
	ctx, span := startSpan(ctx, "ListActions", "search")
	defer span.End()

	var resp searchResponse[triage.AgentAction]
	err := s.search(ctx, ActionsIndex, map[string]any{
		"size":  maxActions,
		"query": map[string]any{"term": map[string]any{"ticket_id": ticketID}},
		"sort":  []any{map[string]any{"timestamp": "asc"}},
	}, &resp)
	if err != nil {
		return nil, fail(span, fmt.Errorf("search actions: %w", err))
	}

	out := make([]triage.AgentAction, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// OpenCountByTeam aggregates open tickets by assigned team.
func (s *Store) OpenCountByTeam(ctx context.Context) (map[string]int, error) {
	ctx, span := startSpan(ctx, "OpenCountByTeam", "search")
	defer span.End()

	var resp searchResponse[json.RawMessage]
	err := s.search(ctx, TicketsIndex, map[string]any{
		"size":  0,
		"query": map[string]any{"term": map[string]any{"status": string(triage.StatusOpen)}},
		"aggs": map[string]any{
			"by_team": map[string]any{"terms": map[string]any{"field": "assigned_team", "size": 10}},
		},
	}, &resp)
	if err != nil {
		return nil, fail(span, fmt.Errorf("aggregate workload: %w", err))
	}

	counts := make(map[string]int, len(resp.Aggregations.ByTeam.Buckets))
	for _, b := range resp.Aggregations.ByTeam.Buckets {
		if b.Key != "" {
			counts[b.Key] = b.DocCount
		}
	}
	return counts, nil
}

// PutTicket indexes t under its id and refreshes so it is searchable at once.
func (s *Store) PutTicket(ctx context.Context, t triage.Ticket) error {
	ctx, span := startSpan(ctx, "PutTicket", "index")
	defer span.End()

	if t.Status == "" {
		t.Status = triage.StatusOpen
	}
	if err := s.put(ctx, TicketsIndex, t.ID, t, "true"); err != nil {
		return fail(span, fmt.Errorf("index ticket: %w", err))
	}
	return nil
}

// PutCustomer indexes c under its id.
func (s *Store) PutCustomer(ctx context.Context, c triage.Customer) error {
	ctx, span := startSpan(ctx, "PutCustomer", "index")
	defer span.End()

	if err := s.put(ctx, CustomersIndex, c.ID, c, "true"); err != nil {
		return fail(span, fmt.Errorf("index customer: %w", err))
	}
	return nil
}

// PutArticle indexes a under its id.
func (s *Store) PutArticle(ctx context.Context, a triage.Article) error {
	ctx, span := startSpan(ctx, "PutArticle", "index")
	defer span.End()

	if err := s.put(ctx, ArticlesIndex, a.ID, a, "true"); err != nil {
		return fail(span, fmt.Errorf("index article: %w", err))
	}
	return nil
}

func (s *Store) searchTickets(ctx context.Context, q map[string]any) ([]triage.Ticket, error) {
	var resp searchResponse[triage.Ticket]
	if err := s.search(ctx, TicketsIndex, q, &resp); err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	out := make([]triage.Ticket, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Store) search(ctx context.Context, index string, q map[string]any, out any) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return err
	}
	return decode(res, out)
}

// get decodes the _source of a document into out. A missing document is
// triage.ErrNotFound.
func (s *Store) get(ctx context.Context, index, id string, out any) error {
	res, err := s.es.Get(index, id, s.es.Get.WithContext(ctx))
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return triage.ErrNotFound
	}
	var doc struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := decode(res, &doc); err != nil {
		return err
	}
	return json.Unmarshal(doc.Source, out)
}

func (s *Store) put(ctx context.Context, index, id string, doc any, refresh string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s document: %w", index, err)
	}
	opts := []func(*esapi.IndexRequest){
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(id),
	}
	if refresh != "" {
		opts = append(opts, s.es.Index.WithRefresh(refresh))
	}
	res, err := s.es.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("index %s/%s: %w", index, id, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("index %s/%s: %w", index, id, err)
	}
	return nil
}

type searchResponse[T any] struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source T       `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		ByTeam struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"by_team"`
	} `json:"aggregations"`
}

// decode closes res, turning error statuses into errors and decoding the body
// into out when out is non-nil.
func decode(res *esapi.Response, out any) error {
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("elasticsearch %s: %s", res.Status(), bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "esstore."+name, trace.WithAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// failUnlessNotFound leaves the span status alone for a plain miss.
func failUnlessNotFound(span trace.Span, err error) error {
	if errors.Is(err, triage.ErrNotFound) {
		return err
	}
	return fail(span, err)
}

var (
	_ triage.Store       = (*Store)(nil)
	_ triage.Seeder      = (*Store)(nil)
	_ triage.AuditReader = (*Store)(nil)
)
