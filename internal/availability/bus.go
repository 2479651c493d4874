package availability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrSlowSubscriber is reported by a subscription the bus dropped because
	// its backlog grew past the configured limit.
	ErrSlowSubscriber = errors.New("availability: subscriber backlog limit exceeded")
	// ErrBusClosed is reported by subscriptions terminated by Bus.Close.
	ErrBusClosed = errors.New("availability: bus closed")
)

const defaultOutBuffer = 16

// Bus is a multicast broadcast point for availability events. Publish never
// blocks on subscribers: every subscription owns an independent backlog that
// a pump goroutine drains into its channel.
type Bus struct {
	mu         sync.Mutex
	subs       map[uint64]*Subscription
	nextID     uint64
	closed     bool
	outBuffer  int
	maxBacklog int
	logger     *slog.Logger

	published   metric.Int64Counter
	dropped     metric.Int64Counter
	subscribers metric.Int64UpDownCounter
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxBacklog drops any subscriber whose undelivered backlog exceeds n
// events. Zero keeps backlogs unbounded.
func WithMaxBacklog(n int) Option {
	return func(b *Bus) {
		if n >= 0 {
			b.maxBacklog = n
		}
	}
}

// WithOutBuffer sets the channel capacity of each subscription.
func WithOutBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.outBuffer = n
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an open bus with no subscribers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:      make(map[uint64]*Subscription),
		outBuffer: defaultOutBuffer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	meter := otel.Meter("bookloan/availability")
	b.published, _ = meter.Int64Counter("availability.events.published")
	b.dropped, _ = meter.Int64Counter("availability.subscribers.dropped")
	b.subscribers, _ = meter.Int64UpDownCounter("availability.subscribers")

	return b
}

// Publish delivers ev to every current subscriber. It returns immediately;
// slow or absent readers never fail or block the publisher. Events published
// after Close are discarded.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, sub := range b.subs {
		if sub.enqueue(ev, b.maxBacklog) {
			continue
		}
		delete(b.subs, id)
		sub.terminate(ErrSlowSubscriber)
		b.dropped.Add(context.Background(), 1)
		b.subscribers.Add(context.Background(), -1)
		b.logger.Warn("dropping slow availability subscriber",
			"subscriber_id", id,
			"max_backlog", b.maxBacklog,
		)
	}
	b.published.Add(context.Background(), 1)
}

// Subscribe attaches a new subscriber. It observes every event published
// after Subscribe returns, in publish order; earlier events are not replayed.
// On a closed bus the returned subscription is already terminated.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := newSubscription(b, b.nextID, b.outBuffer)
	if b.closed {
		sub.terminate(ErrBusClosed)
		return sub
	}

	b.subs[sub.id] = sub
	b.subscribers.Add(context.Background(), 1)
	return sub
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close terminates every subscription and discards later publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.terminate(ErrBusClosed)
		b.subscribers.Add(context.Background(), -1)
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; ok {
		delete(b.subs, id)
		b.subscribers.Add(context.Background(), -1)
	}
}

// Subscription is one subscriber's ordered, independently buffered view of
// the bus.
type Subscription struct {
	id  uint64
	bus *Bus

	mu      sync.Mutex
	backlog []Event
	err     error

	notify    chan struct{}
	out       chan Event
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newSubscription(bus *Bus, id uint64, outBuffer int) *Subscription {
	return &Subscription{
		id:     id,
		bus:    bus,
		notify: make(chan struct{}, 1),
		out:    make(chan Event, outBuffer),
		done:   make(chan struct{}),
	}
}

// C returns the delivery channel. It is closed once the subscription ends;
// Err then tells why. The first call starts delivery.
func (s *Subscription) C() <-chan Event {
	s.startOnce.Do(func() { go s.pump() })
	return s.out
}

// Err returns the reason the subscription was terminated by the bus, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscriber. Other subscribers and the bus are unaffected.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
	s.terminate(nil)
}

// enqueue appends ev to the backlog. It reports false when the backlog limit
// would be exceeded.
func (s *Subscription) enqueue(ev Event, maxBacklog int) bool {
	s.mu.Lock()
	if maxBacklog > 0 && len(s.backlog) >= maxBacklog {
		s.mu.Unlock()
		return false
	}
	s.backlog = append(s.backlog, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// takePending removes and returns every event not yet handed to the pump.
// Only valid before C has been called.
func (s *Subscription) takePending() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.backlog
	s.backlog = nil
	return pending
}

func (s *Subscription) terminate(err error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.backlog = nil
		s.mu.Unlock()
		close(s.done)
		// A subscription that never started delivery still needs its
		// channel closed for readers that call C later.
		s.startOnce.Do(func() { close(s.out) })
	})
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.backlog[0]
		s.backlog[0] = Event{}
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
