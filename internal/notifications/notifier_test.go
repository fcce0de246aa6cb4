package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/featureflags"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_WithoutRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Publish(context.Background(), "payload"))
	assert.NoError(t, n.StartSubscriber(context.Background(), func(string) {
		t.Fatal("no messages expected")
	}))
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartSubscriber(ctx, func(payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.Publish(context.Background(), "before-cancel"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-payloads:
	default:
	}

	require.NoError(t, n.Publish(context.Background(), "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, testPollInterval)
}

func TestPublisher_LocalFallback(t *testing.T) {
	hub := NewHub(0)
	c, err := hub.Register(0, nil)
	require.NoError(t, err)

	p := NewPublisher(NewNotifier(nil), hub, featureflags.NewManager(""))
	p.Publish(context.Background(), 1, EventPostViewed, map[string]interface{}{"id": 4, "views_count": 2})

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"type":"post_viewed","payload":{"id":4,"views_count":2}}`, string(msg))
	default:
		t.Fatal("expected a locally delivered event")
	}
}

func TestPublisher_DisabledByFlag(t *testing.T) {
	hub := NewHub(0)
	c, err := hub.Register(0, nil)
	require.NoError(t, err)

	p := NewPublisher(nil, hub, featureflags.NewManager("realtime_events=off"))
	p.Publish(context.Background(), 1, EventPostCreated, map[string]interface{}{"id": 1})
	assert.Empty(t, c.Send)

	var nilPublisher *Publisher
	assert.NotPanics(t, func() { nilPublisher.Publish(context.Background(), 1, EventPostCreated, nil) })
}

func TestPublisher_RedisPath(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(0)
	c, err := hub.Register(0, nil)
	require.NoError(t, err)
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	NewPublisher(n, hub, nil).Publish(ctx, 1, EventPostUpdated, map[string]interface{}{"id": 8})

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"type":"post_updated","payload":{"id":8}}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("event was not delivered through Redis")
	}
	// Delivered exactly once: the redis path does not also broadcast locally.
	assert.Never(t, func() bool { return len(c.Send) > 0 }, 100*time.Millisecond, testPollInterval)
}
