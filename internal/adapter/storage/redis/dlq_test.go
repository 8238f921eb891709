package redis

import (
	"context"
	"testing"
	"time"

	"webhook-gateway/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeadLetterStore(t *testing.T) *DeadLetterStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDeadLetterStore(client)
}

func testEntry() *domain.DeadLetterEntry {
	sig := "deadbeef"
	return &domain.DeadLetterEntry{
		ID: uuid.New(),
		Original: domain.DeliveryJob{
			EndpointID: uuid.New(),
			TenantID:   uuid.New(),
			Event:      "invoice.paid",
			Timestamp:  "1773480413589",
			Signature:  &sig,
		},
		Failures:  10,
		LastError: "destination returned status 500",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestDeadLetterStore_AddGetRemove(t *testing.T) {
	store := newTestDeadLetterStore(t)
	ctx := context.Background()

	entry := testEntry()
	require.NoError(t, store.Add(ctx, entry))

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Original, got.Original)
	assert.Equal(t, entry.Failures, got.Failures)
	assert.Equal(t, entry.LastError, got.LastError)

	require.NoError(t, store.Remove(ctx, entry.ID))

	got, err = store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeadLetterStore_Get_Missing(t *testing.T) {
	store := newTestDeadLetterStore(t)

	got, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeadLetterStore_List(t *testing.T) {
	store := newTestDeadLetterStore(t)
	ctx := context.Background()

	first := testEntry()
	second := testEntry()
	require.NoError(t, store.Add(ctx, first))
	require.NoError(t, store.Add(ctx, second))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	ids := map[uuid.UUID]bool{}
	for _, e := range entries {
		ids[e.ID] = true
	}
	assert.True(t, ids[first.ID])
	assert.True(t, ids[second.ID])
}
