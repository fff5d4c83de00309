package rediscache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/linnemanlabs/ticketry/internal/triage"
	"github.com/linnemanlabs/ticketry/internal/triage/memstore"
	"github.com/linnemanlabs/ticketry/internal/triage/rediscache"
)

// countingStore counts customer lookups that reach the backing store.
type countingStore struct {
	*memstore.Store
	lookups atomic.Int32
}

func (c *countingStore) GetCustomer(ctx context.Context, id string) (*triage.Customer, error) {
	c.lookups.Add(1)
	return c.Store.GetCustomer(ctx, id)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.PutCustomer(context.Background(), triage.Customer{ID: "C1", Plan: "business", SatisfactionScore: 2.5}))
	return &countingStore{Store: s}
}

// setupRedis spins up a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port()
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ticketry:customer:C42", rediscache.Key("C42"))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := rediscache.New("redis://localhost:6379", nil, 0, nil)
	assert.Error(t, err)

	_, err = rediscache.New("not a url", memstore.New(), 0, nil)
	assert.Error(t, err)
}

func TestGetCustomer_RedisDownFallsThrough(t *testing.T) {
	t.Parallel()

	store := newCountingStore(t)
	b, err := rediscache.New("redis://127.0.0.1:1/0?dial_timeout=100ms&max_retries=-1", store, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	for range 2 {
		c, err := b.GetCustomer(context.Background(), "C1")
		require.NoError(t, err)
		assert.Equal(t, "business", c.Plan)
	}
	assert.EqualValues(t, 2, store.lookups.Load())
}

func TestGetCustomer_CachesHits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	ctx := context.Background()

	store := newCountingStore(t)
	b, err := rediscache.New(url, store, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Ping(ctx))

	for range 3 {
		c, err := b.GetCustomer(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, "business", c.Plan)
		assert.InDelta(t, 2.5, c.SatisfactionScore, 1e-9)
	}
	assert.EqualValues(t, 1, store.lookups.Load())

	require.NoError(t, b.Invalidate(ctx, "C1"))
	_, err = b.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.lookups.Load())
}

func TestPutCustomer_DropsCachedRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	ctx := context.Background()

	store := newCountingStore(t)
	b, err := rediscache.New(url, store, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	c, err := b.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "business", c.Plan)

	require.NoError(t, b.PutCustomer(ctx, triage.Customer{ID: "C1", Plan: "enterprise", SatisfactionScore: 4.5}))

	c, err = b.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", c.Plan)
	assert.EqualValues(t, 2, store.lookups.Load())
}

func TestPutCustomer_ReadOnlyBackend(t *testing.T) {
	t.Parallel()

	b, err := rediscache.New("redis://127.0.0.1:1/0", readOnly{memstore.New()}, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.Error(t, b.PutCustomer(context.Background(), triage.Customer{ID: "C1"}))
}

// readOnly hides the Seeder methods of the wrapped store.
type readOnly struct{ triage.Backend }

func TestGetCustomer_NotFoundNotCached(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	ctx := context.Background()

	store := newCountingStore(t)
	b, err := rediscache.New(url, store, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	for range 2 {
		_, err := b.GetCustomer(ctx, "nobody")
		assert.ErrorIs(t, err, triage.ErrNotFound)
	}
	assert.EqualValues(t, 2, store.lookups.Load())
}

func TestBackend_DrivesService(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	ctx := context.Background()

	store := newCountingStore(t)
	require.NoError(t, store.PutTicket(ctx, triage.Ticket{ID: "T1", Subject: "Refund please", CustomerID: "C1", Status: triage.StatusOpen}))

	b, err := rediscache.New(url, store, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	svc := triage.NewService(b, nil, triage.WithTicketSource(store))
	for range 2 {
		r, err := svc.TriageByID(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, "business", r.Context.CustomerHistory.Plan)
	}
	assert.EqualValues(t, 1, store.lookups.Load())
}
