package regulator

import (
	"errors"
	"testing"

	"github.com/danmuck/reguctl/internal/bus"
	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/testutil/testlog"
)

func newTestState(t *testing.T, inst config.Installation) (*State, chan bus.Event) {
	t.Helper()
	b := bus.New()
	events := make(chan bus.Event, 64)
	if err := b.Subscribe("test", events); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	s, err := NewState("test-crossing", inst, b)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return s, events
}

func drainEvents(ch chan bus.Event) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNewStateStartsOnScheduledPlan(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestState(t, config.DefaultInstallation())

	snap := s.Snapshot()
	if snap.PlanID != 129 || snap.PlanExternal() != 1 {
		t.Fatalf("initial plan: internal=%d external=%d", snap.PlanID, snap.PlanExternal())
	}
	if snap.Mode != ModeCentral || snap.Representation != ReprColor {
		t.Fatalf("initial mode/representation: %v/%v", snap.Mode, snap.Representation)
	}
	if snap.Phase != 1 || snap.InTransition {
		t.Fatalf("initial phase: %d transition=%v", snap.Phase, snap.InTransition)
	}
}

func TestSelectPlanUnknownLeavesStateUntouched(t *testing.T) {
	testlog.Start(t)
	s, events := newTestState(t, config.DefaultInstallation())

	err := s.SelectPlan(200)
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
	if snap := s.Snapshot(); snap.PlanID != 129 {
		t.Fatalf("plan changed on failed selection: %d", snap.PlanID)
	}
	for _, ev := range drainEvents(events) {
		if ev.Kind == bus.KindPlanChanged {
			t.Fatalf("plan change published for failed selection")
		}
	}
}

func TestTickWalksStructureAndPublishesPhaseChanges(t *testing.T) {
	testlog.Start(t)
	s, events := newTestState(t, config.DefaultInstallation())

	// Plan 129: 23s stable, 7s transition, 23s stable, 7s transition,
	// cycle 60.
	for i := 0; i < 29; i++ {
		s.Tick()
	}
	if snap := s.Snapshot(); snap.Phase != 1 || !snap.InTransition {
		t.Fatalf("after 29s: phase=%d transition=%v", snap.Phase, snap.InTransition)
	}

	s.Tick() // 30s: second stable phase begins
	snap := s.Snapshot()
	if snap.Phase != 2 || snap.InTransition {
		t.Fatalf("after 30s: phase=%d transition=%v", snap.Phase, snap.InTransition)
	}

	for i := 0; i < 30; i++ {
		s.Tick()
	}
	snap = s.Snapshot()
	if snap.Phase != 1 || snap.CycleElapsed != 0 {
		t.Fatalf("after full cycle: phase=%d elapsed=%d", snap.Phase, snap.CycleElapsed)
	}

	var phases []int
	for _, ev := range drainEvents(events) {
		if ev.Kind == bus.KindPhaseChanged {
			phases = append(phases, ev.Phase)
		}
	}
	if len(phases) != 2 || phases[0] != 2 || phases[1] != 1 {
		t.Fatalf("phase change events: %v", phases)
	}
}

func TestStartupSequenceTiming(t *testing.T) {
	testlog.Start(t)
	s, events := newTestState(t, config.DefaultInstallation())

	s.BeginStartup()
	if snap := s.Snapshot(); snap.StartupStage != 1 {
		t.Fatalf("startup stage after begin: %d", snap.StartupStage)
	}

	for i := 0; i < 5; i++ {
		s.Tick()
	}
	if snap := s.Snapshot(); snap.StartupStage != 2 {
		t.Fatalf("stage after 5s: %d", snap.StartupStage)
	}
	for i := 0; i < 4; i++ {
		s.Tick()
	}
	if snap := s.Snapshot(); snap.StartupStage != 3 {
		t.Fatalf("stage after 9s: %d", snap.StartupStage)
	}
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	if snap.StartupStage != 0 {
		t.Fatalf("stage after 12s: %d", snap.StartupStage)
	}
	if snap.Phase != 1 || snap.CycleElapsed != 0 {
		t.Fatalf("cycling restart: phase=%d elapsed=%d", snap.Phase, snap.CycleElapsed)
	}

	var stages []int
	for _, ev := range drainEvents(events) {
		if ev.Kind == bus.KindStartupStage {
			stages = append(stages, ev.Stage)
		}
	}
	want := []int{1, 2, 3, 0}
	if len(stages) != len(want) {
		t.Fatalf("startup events: %v want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("startup events: %v want %v", stages, want)
		}
	}
}

func TestSetStatesPublishesOnlyOnChange(t *testing.T) {
	testlog.Start(t)
	s, events := newTestState(t, config.DefaultInstallation())

	s.SetStates(ReprColor, ModeCentral) // no change
	s.SetStates(ReprColor, ModeLocal)
	s.SetStates(ReprColor, ModeLocal) // no change

	var modes []string
	for _, ev := range drainEvents(events) {
		if ev.Kind == bus.KindModeChanged {
			modes = append(modes, ev.Mode)
		}
	}
	if len(modes) != 1 || modes[0] != "local" {
		t.Fatalf("mode change events: %v", modes)
	}
}

func TestPulseDetector(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestState(t, config.DefaultInstallation())

	if err := s.PulseDetector(1); err != nil {
		t.Fatalf("pulse detector 1: %v", err)
	}
	if err := s.PulseDetector(1); err != nil {
		t.Fatalf("pulse detector 1: %v", err)
	}
	if err := s.PulseDetector(99); !errors.Is(err, ErrUnknownDetector) {
		t.Fatalf("expected ErrUnknownDetector, got %v", err)
	}

	snap := s.Snapshot()
	if snap.DetectorCounts[0] != 2 || snap.DetectorCounts[1] != 0 {
		t.Fatalf("detector counts: %v", snap.DetectorCounts)
	}
}

func TestParseModeAndRepresentation(t *testing.T) {
	if m, err := ParseMode("central"); err != nil || m != ModeCentral {
		t.Fatalf("parse central: %v %v", m, err)
	}
	if _, err := ParseMode("auto"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if r, err := ParseRepresentation("blink"); err != nil || r != ReprBlink {
		t.Fatalf("parse blink: %v %v", r, err)
	}
	if _, err := ParseRepresentation("dark"); err == nil {
		t.Fatalf("expected error for unknown representation")
	}
}
