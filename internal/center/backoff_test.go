package center

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/reguctl/internal/testutil/testlog"
)

func TestNextBackoffDelayGrowth(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt %d delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestNextBackoffDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{Multiplier: 2.0}
	if got := NextBackoffDelay(cfg, 3, nil); got != 0 {
		t.Fatalf("delay = %v, want 0 with no initial delay", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(1))
	base := 200 * time.Millisecond
	for i := 0; i < 10; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < base/2 || got > base+base/2 {
			t.Fatalf("jittered delay = %v, want within [%v, %v]", got, base/2, base+base/2)
		}
	}
}
