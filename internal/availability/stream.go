package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SnapshotSource reads the current status of every book.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]Event, error)
}

// Policy selects how a stream joins the snapshot to the live feed.
type Policy int

const (
	// PolicyGapFree subscribes before reading the snapshot. Events that
	// arrive while the snapshot loads are collapsed to the latest per book
	// and delivered right after it, so no change is lost.
	PolicyGapFree Policy = iota
	// PolicySnapshotFirst reads the snapshot and subscribes afterwards.
	// Changes committed between the two are not delivered.
	PolicySnapshotFirst
)

func (p Policy) String() string {
	switch p {
	case PolicyGapFree:
		return "gap-free"
	case PolicySnapshotFirst:
		return "snapshot-first"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "gap-free":
		return PolicyGapFree, nil
	case "snapshot-first":
		return PolicySnapshotFirst, nil
	default:
		return 0, fmt.Errorf("unknown stream policy %q", s)
	}
}

// Assembler builds per-reader availability streams: a snapshot of all books
// followed by live change events.
type Assembler struct {
	source SnapshotSource
	bus    *Bus
	policy Policy
	logger *slog.Logger
}

// NewAssembler creates an Assembler reading snapshots from source and live
// events from bus.
func NewAssembler(source SnapshotSource, bus *Bus, policy Policy, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		source: source,
		bus:    bus,
		policy: policy,
		logger: logger,
	}
}

// Stream is one reader's unbounded sequence of availability events.
type Stream struct {
	events chan Event

	mu  sync.Mutex
	err error
}

// Events returns the stream's channel. It is closed only when the context
// passed to Assembler.Stream is done or the stream fails; see Err.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Err reports why the stream ended. It is nil for a cancelled stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) send(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stream starts a new stream and returns without waiting for the snapshot.
// Every call gets its own snapshot and subscription; cancelling ctx detaches
// only this reader.
func (a *Assembler) Stream(ctx context.Context) *Stream {
	st := &Stream{events: make(chan Event)}

	var sub *Subscription
	if a.policy == PolicyGapFree {
		sub = a.bus.Subscribe()
	}

	go a.run(ctx, st, sub)
	return st
}

func (a *Assembler) run(ctx context.Context, st *Stream, sub *Subscription) {
	defer close(st.events)
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	snapshot, err := a.source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error("availability snapshot failed", "error", err)
			st.fail(fmt.Errorf("load availability snapshot: %w", err))
		}
		return
	}

	var pending []Event
	if sub == nil {
		sub = a.bus.Subscribe()
	} else {
		pending = latestByBook(sub.takePending())
	}

	for _, ev := range snapshot {
		if !st.send(ctx, ev) {
			return
		}
	}
	for _, ev := range pending {
		if !st.send(ctx, ev) {
			return
		}
	}

	live := sub.C()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-live:
			if !ok {
				if err := sub.Err(); err != nil {
					a.logger.Warn("availability stream terminated", "error", err)
					st.fail(err)
				}
				return
			}
			if !st.send(ctx, ev) {
				return
			}
		}
	}
}

// latestByBook keeps only the last event for each book, in the order those
// last events were published.
func latestByBook(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	last := make(map[string]int, len(events))
	for i, ev := range events {
		last[ev.BookID] = i
	}

	out := make([]Event, 0, len(last))
	for i, ev := range events {
		if last[ev.BookID] == i {
			out = append(out, ev)
		}
	}
	return out
}
