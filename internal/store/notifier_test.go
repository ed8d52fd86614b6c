package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) (*Notifier, context.CancelFunc) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	n := NewNotifier(rdb, 2)
	require.NoError(t, n.Start(ctx))
	return n, cancel
}

func TestNotifier_PublishReachesWatcher(t *testing.T) {
	n, cancel := newTestNotifier(t)
	defer cancel()

	got := make(chan []byte, 1)
	disposer := n.Watch(messageChannel("team-x"), func(payload []byte) {
		select {
		case got <- payload:
		default:
		}
	})
	defer disposer()

	require.NoError(t, n.Publish(context.Background(), messageChannel("team-x"), map[string]string{"hello": "world"}))

	select {
	case payload := <-got:
		assert.JSONEq(t, `{"hello":"world"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never received the published payload")
	}
}

func TestNotifier_ChannelsAreIsolated(t *testing.T) {
	n, cancel := newTestNotifier(t)
	defer cancel()

	var mu sync.Mutex
	var delivered []string
	disposer := n.Watch(messageChannel("team-x"), func(payload []byte) {
		mu.Lock()
		delivered = append(delivered, string(payload))
		mu.Unlock()
	})
	defer disposer()

	ctx := context.Background()
	require.NoError(t, n.Publish(ctx, messageChannel("team-y"), map[string]string{"room": "y"}))
	require.NoError(t, n.Publish(ctx, participantChannel("team-x"), map[string]string{}))
	require.NoError(t, n.Publish(ctx, messageChannel("team-x"), map[string]string{"room": "x"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1)
	assert.JSONEq(t, `{"room":"x"}`, delivered[0])
}

func TestNotifier_PerChannelOrderPreserved(t *testing.T) {
	n, cancel := newTestNotifier(t)
	defer cancel()

	const total = 50

	var mu sync.Mutex
	var got []string
	disposer := n.Watch(messageChannel("team-x"), func(payload []byte) {
		var v map[string]int
		if err := json.Unmarshal(payload, &v); err != nil {
			return
		}
		mu.Lock()
		got = append(got, fmt.Sprintf("%d", v["seq"]))
		mu.Unlock()
	})
	defer disposer()

	ctx := context.Background()
	want := make([]string, 0, total)
	for i := 0; i < total; i++ {
		require.NoError(t, n.Publish(ctx, messageChannel("team-x"), map[string]int{"seq": i}))
		want = append(want, fmt.Sprintf("%d", i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == total
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Events for one room arrive in publish order; a confirm must never
	// overtake the add it belongs to.
	assert.Equal(t, want, got)
}

func TestNotifier_DisposerStopsDelivery(t *testing.T) {
	n, cancel := newTestNotifier(t)
	defer cancel()

	var mu sync.Mutex
	count := 0
	disposer := n.Watch(messageChannel("team-x"), func([]byte) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, n.Publish(ctx, messageChannel("team-x"), map[string]int{"n": 1}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	disposer()

	require.NoError(t, n.Publish(ctx, messageChannel("team-x"), map[string]int{"n": 2}))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no delivery after dispose")
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "parley:room:team-x:messages", messageChannel("team-x"))
	assert.Equal(t, "parley:room:team-x:participants", participantChannel("team-x"))
}
