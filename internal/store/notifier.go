package store

import (
	"context"
	"hash/fnv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const channelPattern = "parley:room:*"

func messageChannel(slug string) string {
	return "parley:room:" + slug + ":messages"
}

func participantChannel(slug string) string {
	return "parley:room:" + slug + ":participants"
}

// watcher guards a single subscription callback. Delivery and disposal
// serialize on the mutex so that once dispose returns, the callback can
// never fire again.
type watcher struct {
	mu       sync.Mutex
	disposed bool
	fn       func([]byte)
}

func (w *watcher) deliver(payload []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return
	}
	w.fn(payload)
}

func (w *watcher) dispose() {
	w.mu.Lock()
	w.disposed = true
	w.mu.Unlock()
}

// Notifier fans Redis pub/sub change events out to in-process watchers.
// One pattern subscription covers every room channel; a small pool of
// dispatch workers drains the feed, sharded by channel so events for one
// room are delivered in publish order.
type Notifier struct {
	rdb       *redis.Client
	workerNum int

	mu       sync.RWMutex
	watchers map[string]map[uint64]*watcher
	nextID   uint64
}

func NewNotifier(rdb *redis.Client, workerNum int) *Notifier {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &Notifier{
		rdb:       rdb,
		workerNum: workerNum,
		watchers:  make(map[string]map[uint64]*watcher),
	}
}

// Start subscribes to the room channel pattern and launches the dispatch
// workers. It returns once the subscription is confirmed.
func (n *Notifier) Start(ctx context.Context) error {
	ps := n.rdb.PSubscribe(ctx, channelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	feed := ps.Channel(redis.WithChannelSize(256))

	// One queue per worker, routed by channel hash. A room's added and
	// modified events must not race each other across workers.
	queues := make([]chan *redis.Message, n.workerNum)
	for i := range queues {
		queues[i] = make(chan *redis.Message, 64)
	}

	log.Info().Int("workers", n.workerNum).Msg("notifier: dispatch workers starting")
	for _, q := range queues {
		go func() {
			for msg := range q {
				n.dispatch(msg.Channel, []byte(msg.Payload))
			}
		}()
	}

	go func() {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for msg := range feed {
			h := fnv.New32a()
			h.Write([]byte(msg.Channel))
			queues[h.Sum32()%uint32(len(queues))] <- msg
		}
	}()

	go func() {
		<-ctx.Done()
		if err := ps.Close(); err != nil {
			log.Warn().Err(err).Msg("notifier: pubsub close error")
		}
	}()

	return nil
}

func (n *Notifier) dispatch(channel string, payload []byte) {
	n.mu.RLock()
	targets := make([]*watcher, 0, len(n.watchers[channel]))
	for _, w := range n.watchers[channel] {
		targets = append(targets, w)
	}
	n.mu.RUnlock()

	for _, w := range targets {
		w.deliver(payload)
	}
}

// Watch registers a callback for one channel and returns its disposer.
func (n *Notifier) Watch(channel string, fn func([]byte)) Disposer {
	w := &watcher{fn: fn}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	if n.watchers[channel] == nil {
		n.watchers[channel] = make(map[uint64]*watcher)
	}
	n.watchers[channel][id] = w
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		if ws, ok := n.watchers[channel]; ok {
			delete(ws, id)
			if len(ws) == 0 {
				delete(n.watchers, channel)
			}
		}
		n.mu.Unlock()
		w.dispose()
	}
}

func (n *Notifier) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}
