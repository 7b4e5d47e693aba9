package bus

import (
	"errors"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := New()
	ch := make(chan Event, 4)
	if err := b.Subscribe("journal", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Publish(Event{Kind: KindPlanChanged, At: time.Now(), Plan: 129})

	select {
	case ev := <-ch:
		if ev.Kind != KindPlanChanged || ev.Plan != 129 {
			t.Fatalf("event mismatch: %+v", ev)
		}
	default:
		t.Fatalf("no event delivered")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	if err := b.Subscribe("slow", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Publish(Event{Kind: KindPhaseChanged, Phase: 1})
	b.Publish(Event{Kind: KindPhaseChanged, Phase: 2})

	stats, err := b.Stats("slow")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Fatalf("stats: got=%+v want sent=1 dropped=1", stats)
	}
}

func TestSubscribeDuplicateID(t *testing.T) {
	b := New()
	if err := b.Subscribe("a", make(chan Event, 1)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	err := b.Subscribe("a", make(chan Event, 1))
	if !errors.Is(err, ErrSubscriberExists) {
		t.Fatalf("expected ErrSubscriberExists, got %v", err)
	}
}

func TestClosedBusRejectsSubscribeAndDropsPublish(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	if err := b.Subscribe("a", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b.Close()

	b.Publish(Event{Kind: KindModeChanged})
	select {
	case ev := <-ch:
		t.Fatalf("event delivered after close: %+v", ev)
	default:
	}

	if err := b.Subscribe("b", make(chan Event, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestUnsubscribeUnknown(t *testing.T) {
	b := New()
	if err := b.Unsubscribe("ghost"); !errors.Is(err, ErrUnknownSubscriber) {
		t.Fatalf("expected ErrUnknownSubscriber, got %v", err)
	}
}
