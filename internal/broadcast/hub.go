package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"StoryStream/internal/domain"
	"StoryStream/internal/logging"
	"StoryStream/internal/metrics"
	"StoryStream/internal/ports"
)

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("broadcast hub closed")

// Conn is a subscriber connection owned by the hub once registered.
type Conn interface {
	ID() string
	WriteEvent(ctx context.Context, event domain.Event) error
	Close() error
}

// Counter supplies the recent-activity count sent to new subscribers.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Options tunes delivery.
type Options struct {
	SendTimeout time.Duration
	QueueSize   int
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Hub owns the live subscriber set and fans events out to it.
type Hub struct {
	counter     Counter
	sendTimeout time.Duration
	queueSize   int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

var _ ports.Broadcaster = (*Hub)(nil)

type subscriber struct {
	conn  Conn
	queue chan domain.Event
	done  chan struct{}
	once  sync.Once
}

// stop ends the writer and closes the connection in the background. Closing
// a real socket can wait on a writer stuck in a send, so it never runs on the
// caller's goroutine.
func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
		go func() { _ = s.conn.Close() }()
	})
}

// NewHub builds an empty hub.
func NewHub(counter Counter, opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	return &Hub{
		counter:     counter,
		sendTimeout: opts.SendTimeout,
		queueSize:   opts.QueueSize,
		logger:      logging.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
		subs:        make(map[string]*subscriber),
	}
}

// Register queues initialCount as the connection's first event and only then
// makes it visible to Broadcast. A failed count is reported as zero.
func (h *Hub) Register(ctx context.Context, conn Conn) error {
	count := 0
	if h.counter != nil {
		n, err := h.counter.Count(ctx)
		if err != nil {
			h.logger.Warn("recent activity count failed", "error", err)
		} else {
			count = n
		}
	}

	sub := &subscriber{
		conn:  conn,
		queue: make(chan domain.Event, h.queueSize),
		done:  make(chan struct{}),
	}
	sub.queue <- domain.NewInitialCountEvent(count)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if _, exists := h.subs[conn.ID()]; exists {
		h.mu.Unlock()
		return fmt.Errorf("subscriber %s already registered", conn.ID())
	}
	h.subs[conn.ID()] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.logger.Debug("subscriber registered", "id", conn.ID(), "initialCount", count)

	go h.writeLoop(sub)
	return nil
}

// Unregister removes the connection and closes it asynchronously. Unknown ids
// are ignored.
func (h *Hub) Unregister(id string) {
	if h.remove(id) {
		h.logger.Debug("subscriber unregistered", "id", id)
	}
}

func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return false
	}
	sub.stop()
	h.metrics.SetSubscribers(n)
	return true
}

// Broadcast enqueues event for every current subscriber without blocking.
// A subscriber whose queue is full is dropped.
func (h *Hub) Broadcast(event domain.Event) {
	h.mu.RLock()
	snapshot := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case sub.queue <- event:
		default:
			h.fail(sub, fmt.Errorf("%w: send queue full", domain.ErrDelivery))
		}
	}
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	h.metrics.SetSubscribers(0)
}

func (h *Hub) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case event := <-sub.queue:
			if err := h.send(sub, event); err != nil {
				h.fail(sub, err)
				return
			}
		}
	}
}

func (h *Hub) send(sub *subscriber, event domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
	defer cancel()

	if err := sub.conn.WriteEvent(ctx, event); err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return nil
}

func (h *Hub) fail(sub *subscriber, err error) {
	if !h.remove(sub.conn.ID()) {
		return
	}
	h.logger.Warn("dropped subscriber", "id", sub.conn.ID(), "error", err)
	h.metrics.DeliveryFailed()
}
