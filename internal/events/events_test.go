package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/questline/api/internal/config"
	"github.com/forgo/questline/api/internal/logger"
)

func TestNew_StampsEnvelope(t *testing.T) {
	t.Parallel()

	e := New(TypeRewardDistributed, "user:1", map[string]int{"guilds": 3})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeRewardDistributed, e.Type)
	assert.Equal(t, "user:1", e.UserID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Minute)
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NopPublisher{}.Publish(context.Background(), New(TypeProgressUpdated, "u", nil)))
}

func TestNewRedisPublisher_RequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewRedisPublisher(nil, "", logger.Nop())
	assert.Error(t, err)
}

// Runs only when a Redis server is available.
func TestRedisPublisher_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	pub, err := NewRedisPublisher(rdb, "questline.test."+New("", "", nil).ID, logger.Nop())
	require.NoError(t, err)

	got := make(chan Event, 1)
	require.NoError(t, pub.Subscribe(ctx, func(e Event) { got <- e }))

	sent := New(TypeProgressUpdated, "user:42", nil)
	require.NoError(t, pub.Publish(ctx, sent))

	select {
	case e := <-got:
		assert.Equal(t, sent.ID, e.ID)
		assert.Equal(t, "user:42", e.UserID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
