package regulator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/reguctl/internal/bus"
	"github.com/danmuck/reguctl/internal/config"
)

var (
	ErrUnknownPlan     = errors.New("regulator: unknown plan")
	ErrUnknownDetector = errors.New("regulator: unknown detector")
)

// Mode is the command source of the regulator. The numeric values are
// the ones the center protocol carries.
type Mode int

const (
	ModeLocal   Mode = 1
	ModeCentral Mode = 2
	ModeManual  Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeCentral:
		return "central"
	case ModeManual:
		return "manual"
	}
	return fmt.Sprintf("mode_%d", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "local":
		return ModeLocal, nil
	case "central":
		return ModeCentral, nil
	case "manual":
		return ModeManual, nil
	}
	return 0, fmt.Errorf("regulator: unknown mode %q", s)
}

// Representation is the lamp master state: dark, flashing amber or
// normal color operation.
type Representation int

const (
	ReprOff   Representation = 0
	ReprBlink Representation = 1
	ReprColor Representation = 2
)

func (r Representation) String() string {
	switch r {
	case ReprOff:
		return "off"
	case ReprBlink:
		return "blink"
	case ReprColor:
		return "color"
	}
	return fmt.Sprintf("representation_%d", int(r))
}

func ParseRepresentation(s string) (Representation, error) {
	switch s {
	case "off":
		return ReprOff, nil
	case "blink":
		return ReprBlink, nil
	case "color":
		return ReprColor, nil
	}
	return 0, fmt.Errorf("regulator: unknown representation %q", s)
}

// startupStageSeconds are the fixed power-on staging times: flashing
// amber, steady amber, all red. Cabinets hard-wire these; they are not
// configuration.
var startupStageSeconds = [...]int{5, 4, 3}

// step is one element of the expanded structure sequence. A stable
// step shows the colors of phase; a transition step clears phase
// toward next.
type step struct {
	phase      int
	next       int
	transition bool
	duration   int
}

// Snapshot is a point-in-time copy of the regulator state. Report
// builders and the admin API read snapshots only; slices are owned by
// the snapshot.
type Snapshot struct {
	Name           string
	Mode           Mode
	Representation Representation
	PlanID         int // internal numbering, center-facing is PlanID-128
	Phase          int
	CycleElapsed   int
	CycleLength    int
	InTransition   bool
	StartupStage   int // 1..3 while staging, 0 once cycling
	Groups         []config.Group
	GroupColors    []config.Color
	LampAlarm      bool
	ConflictAlarm  bool
	DetectorCounts []int
	BlinkOn        bool
	At             time.Time
}

// PlanExternal is the center-facing number of the active plan.
func (s Snapshot) PlanExternal() int { return s.PlanID - 128 }

// State owns every mutable regulator variable behind one mutex. All
// mutations publish their state-change events on the bus; readers take
// snapshots.
type State struct {
	mu   sync.RWMutex
	name string
	inst config.Installation
	bus  *bus.Bus

	mode           Mode
	representation Representation

	plan        config.Plan
	structure   config.Structure
	steps       []step
	position    int
	stepElapsed int

	cycleElapsed int
	phase        int

	startupStage   int
	startupElapsed int

	blinkOn bool

	lampAlarm     bool
	conflictAlarm bool

	detectorCounts []int
}

// NewState builds the runtime state for one installation. The initial
// plan comes from the schedule regardless of mode; the regulator wakes
// in central mode with color representation, like the cabinets do.
func NewState(name string, inst config.Installation, b *bus.Bus) (*State, error) {
	if err := config.ValidateInstallation(inst); err != nil {
		return nil, fmt.Errorf("regulator: %w", err)
	}
	s := &State{
		name:           name,
		inst:           inst,
		bus:            b,
		mode:           ModeCentral,
		representation: ReprColor,
		detectorCounts: make([]int, inst.Detectors.Count),
	}

	planID := inst.Plans[0].ID
	if id, ok := scheduledPlanID(inst.Plans, time.Now()); ok {
		planID = id
	}
	if err := s.selectPlanLocked(planID); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) Name() string { return s.name }

// Installation returns the static traffic description.
func (s *State) Installation() config.Installation { return s.inst }

func (s *State) publish(ev bus.Event) {
	if s.bus == nil {
		return
	}
	ev.At = time.Now()
	s.bus.Publish(ev)
}

// selectPlanLocked activates a plan and restarts the structure at its
// first phase. Callers hold the write lock or have exclusive access.
func (s *State) selectPlanLocked(internalID int) error {
	plan, ok := s.inst.PlanByID(internalID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlan, internalID)
	}
	structure, ok := s.inst.StructureByID(plan.Structure)
	if !ok {
		return fmt.Errorf("%w: %d references structure %d", ErrUnknownPlan, internalID, plan.Structure)
	}

	steps := make([]step, 0, 2*len(structure.Phases))
	for i, phaseID := range structure.Phases {
		steps = append(steps, step{phase: phaseID, duration: plan.Durations[i]})
		if t := plan.TransitionSeconds(); t > 0 {
			next := structure.Phases[(i+1)%len(structure.Phases)]
			steps = append(steps, step{phase: phaseID, next: next, transition: true, duration: t})
		}
	}

	s.plan = plan
	s.structure = structure
	s.steps = steps
	s.position = 0
	s.stepElapsed = 0
	s.cycleElapsed = 0
	s.phase = steps[0].phase
	return nil
}

// SelectPlan activates the plan with the given internal id. Unknown
// ids leave the state untouched.
func (s *State) SelectPlan(internalID int) error {
	s.mu.Lock()
	err := s.selectPlanLocked(internalID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(bus.Event{Kind: bus.KindPlanChanged, Plan: internalID})
	return nil
}

// SetStates applies a representation and mode order, as carried by the
// center's states message.
func (s *State) SetStates(repr Representation, mode Mode) {
	s.mu.Lock()
	changed := s.representation != repr || s.mode != mode
	s.representation = repr
	s.mode = mode
	s.mu.Unlock()
	if changed {
		s.publish(bus.Event{
			Kind:           bus.KindModeChanged,
			Mode:           mode.String(),
			Representation: repr.String(),
		})
	}
}

// SetMode changes the command source only.
func (s *State) SetMode(mode Mode) {
	s.mu.Lock()
	repr := s.representation
	changed := s.mode != mode
	s.mode = mode
	s.mu.Unlock()
	if changed {
		s.publish(bus.Event{
			Kind:           bus.KindModeChanged,
			Mode:           mode.String(),
			Representation: repr.String(),
		})
	}
}

// Mode returns the current command source.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetAlarms latches or clears the alarm flags.
func (s *State) SetAlarms(lamp, conflict bool) {
	s.mu.Lock()
	changed := s.lampAlarm != lamp || s.conflictAlarm != conflict
	s.lampAlarm = lamp
	s.conflictAlarm = conflict
	s.mu.Unlock()
	if changed {
		s.publish(bus.Event{Kind: bus.KindAlarmsChanged, Detail: fmt.Sprintf("lamp=%v conflict=%v", lamp, conflict)})
	}
}

// PulseDetector counts one pass on detector id (1-based).
func (s *State) PulseDetector(id int) error {
	s.mu.Lock()
	if id < 1 || id > len(s.detectorCounts) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownDetector, id)
	}
	s.detectorCounts[id-1]++
	s.mu.Unlock()
	s.publish(bus.Event{Kind: bus.KindDetectorPulse, Detector: id})
	return nil
}

// BeginStartup enters the power-on staging sequence and restarts the
// structure behind it.
func (s *State) BeginStartup() {
	s.mu.Lock()
	s.startupStage = 1
	s.startupElapsed = 0
	s.position = 0
	s.stepElapsed = 0
	s.cycleElapsed = 0
	s.phase = s.steps[0].phase
	s.mu.Unlock()
	s.publish(bus.Event{Kind: bus.KindStartupStage, Stage: 1})
}

// ToggleBlink flips the lamp visibility toggle. Presentation only; the
// protocol encoding of blinking states never depends on it.
func (s *State) ToggleBlink() {
	s.mu.Lock()
	s.blinkOn = !s.blinkOn
	s.mu.Unlock()
}

// Tick advances the regulator by one second.
func (s *State) Tick() {
	s.mu.Lock()
	var events []bus.Event
	if s.startupStage > 0 {
		events = s.startupTickLocked()
	} else {
		events = s.cycleTickLocked()
	}
	s.mu.Unlock()
	for _, ev := range events {
		s.publish(ev)
	}
}

func (s *State) startupTickLocked() []bus.Event {
	s.startupElapsed++
	if s.startupElapsed < startupStageSeconds[s.startupStage-1] {
		return nil
	}
	s.startupElapsed = 0
	s.startupStage++
	if s.startupStage > len(startupStageSeconds) {
		s.startupStage = 0
		return []bus.Event{{Kind: bus.KindStartupStage, Stage: 0, Detail: "cycling"}}
	}
	return []bus.Event{{Kind: bus.KindStartupStage, Stage: s.startupStage}}
}

func (s *State) cycleTickLocked() []bus.Event {
	s.cycleElapsed++
	if s.cycleElapsed >= s.plan.Cycle {
		// The cycle counter is authoritative: wrap restarts the
		// structure even mid-step.
		s.cycleElapsed = 0
		s.position = 0
		s.stepElapsed = 0
		return s.setPhaseLocked(s.steps[0].phase)
	}

	s.stepElapsed++
	if s.stepElapsed < s.steps[s.position].duration {
		return nil
	}
	s.stepElapsed = 0
	s.position = (s.position + 1) % len(s.steps)
	if st := s.steps[s.position]; !st.transition {
		return s.setPhaseLocked(st.phase)
	}
	return nil
}

func (s *State) setPhaseLocked(phase int) []bus.Event {
	if s.phase == phase {
		return nil
	}
	s.phase = phase
	return []bus.Event{{Kind: bus.KindPhaseChanged, Phase: phase, Plan: s.plan.ID}}
}

// Snapshot copies the current state, with group colors computed for
// this instant. The copy owns its slices.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]config.Group, len(s.inst.Groups))
	copy(groups, s.inst.Groups)
	counts := make([]int, len(s.detectorCounts))
	copy(counts, s.detectorCounts)

	return Snapshot{
		Name:           s.name,
		Mode:           s.mode,
		Representation: s.representation,
		PlanID:         s.plan.ID,
		Phase:          s.phase,
		CycleElapsed:   s.cycleElapsed,
		CycleLength:    s.plan.Cycle,
		InTransition:   s.steps[s.position].transition,
		StartupStage:   s.startupStage,
		Groups:         groups,
		GroupColors:    s.groupColorsLocked(),
		LampAlarm:      s.lampAlarm,
		ConflictAlarm:  s.conflictAlarm,
		DetectorCounts: counts,
		BlinkOn:        s.blinkOn,
		At:             time.Now(),
	}
}
