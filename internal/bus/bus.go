package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed            = errors.New("bus: closed")
	ErrSubscriberExists  = errors.New("bus: subscriber id already registered")
	ErrNilChannel        = errors.New("bus: nil channel")
	ErrUnknownSubscriber = errors.New("bus: unknown subscriber")
)

// Kind tags a state-change event.
type Kind string

const (
	KindPlanChanged   Kind = "plan_changed"
	KindModeChanged   Kind = "mode_changed"
	KindPhaseChanged  Kind = "phase_changed"
	KindStartupStage  Kind = "startup_stage"
	KindAlarmsChanged Kind = "alarms_changed"
	KindDetectorPulse Kind = "detector_pulse"
)

// Event is one state change published by the regulator core. Fields
// beyond Kind and At are populated per kind and zero otherwise.
type Event struct {
	Kind           Kind
	At             time.Time
	Plan           int // internal plan id
	Phase          int
	Stage          int // startup stage 1..3, 0 once cycling
	Mode           string
	Representation string
	Detector       int
	Detail         string
}

// SubscriberStats counts deliveries for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	ch      chan<- Event
	sent    uint64
	dropped uint64
}

// Bus fans state-change events out to registered subscribers. Sends
// never block; a subscriber that falls behind loses events rather than
// stalling the regulator tick.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe registers ch under id. The caller owns the channel and its
// buffering; an unbuffered channel drops every event it is not already
// waiting on.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if ch == nil {
		return ErrNilChannel
	}
	if _, exists := b.subs[id]; exists {
		return ErrSubscriberExists
	}
	b.subs[id] = &subscriber{ch: ch}
	return nil
}

// Unsubscribe removes id. The subscriber's channel is not closed; the
// owner decides its lifetime.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[id]; !exists {
		return ErrUnknownSubscriber
	}
	delete(b.subs, id)
	return nil
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
			atomic.AddUint64(&s.sent, 1)
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
	}
}

// Stats returns delivery counters for id.
func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, exists := b.subs[id]
	if !exists {
		return SubscriberStats{}, ErrUnknownSubscriber
	}
	return SubscriberStats{
		Sent:    atomic.LoadUint64(&s.sent),
		Dropped: atomic.LoadUint64(&s.dropped),
	}, nil
}

// Close drops all subscribers and rejects further registrations.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.subs = nil
}
