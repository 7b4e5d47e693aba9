package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Group kinds. Transition timing differs per kind: vehicular groups
// clear through amber, pedestrian and cyclist groups through a
// green-blink interval.
const (
	KindVehicular  = "vehicular"
	KindPedestrian = "pedestrian"
	KindCyclist    = "cyclist"
)

type Group struct {
	ID          int    `toml:"id"`
	Kind        string `toml:"kind"`
	Label       string `toml:"label"`
	AlwaysAmber bool   `toml:"always_amber"`
}

// Phase maps every group to a color. Colors[i] belongs to Groups[i] of
// the installation, in declaration order.
type Phase struct {
	ID     int     `toml:"id"`
	Colors []Color `toml:"colors"`
}

// Structure is an ordered sequence of stable phases. A transition is
// implied between consecutive phases and at the wrap.
type Structure struct {
	ID     int   `toml:"id"`
	Phases []int `toml:"phases"`
}

type VehicularTransition struct {
	Amber        int `toml:"amber"`
	RedClearance int `toml:"red_clearance"`
}

type PedestrianTransition struct {
	GreenBlink int `toml:"green_blink"`
	Red        int `toml:"red"`
}

type Transitions struct {
	Vehicular  VehicularTransition  `toml:"vehicular"`
	Pedestrian PedestrianTransition `toml:"pedestrian"`
}

// Plan is one timing plan. ID is the internal plan number; the center
// addresses plans with ID-128.
type Plan struct {
	ID          int         `toml:"id"`
	Structure   int         `toml:"structure"`
	Cycle       int         `toml:"cycle"`
	Durations   []int       `toml:"durations"`
	Starts      []string    `toml:"starts"`
	Transitions Transitions `toml:"transitions"`
}

// External is the center-facing plan number.
func (p Plan) External() int { return p.ID - 128 }

// TransitionSeconds is the implied transition length: whichever of the
// vehicular and pedestrian clearances takes longer.
func (p Plan) TransitionSeconds() int {
	veh := p.Transitions.Vehicular.Amber + p.Transitions.Vehicular.RedClearance
	ped := p.Transitions.Pedestrian.GreenBlink + p.Transitions.Pedestrian.Red
	if ped > veh {
		return ped
	}
	return veh
}

type Detectors struct {
	Count    int  `toml:"count"`
	RealTime bool `toml:"real_time"`
}

// Installation is the full traffic description of one crossing.
type Installation struct {
	Name       string      `toml:"name"`
	Groups     []Group     `toml:"groups"`
	Phases     []Phase     `toml:"phases"`
	Structures []Structure `toml:"structures"`
	Plans      []Plan      `toml:"plans"`
	Detectors  Detectors   `toml:"detectors"`
}

func (inst Installation) PlanByID(id int) (Plan, bool) {
	for _, p := range inst.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func (inst Installation) StructureByID(id int) (Structure, bool) {
	for _, s := range inst.Structures {
		if s.ID == id {
			return s, true
		}
	}
	return Structure{}, false
}

func (inst Installation) PhaseByID(id int) (Phase, bool) {
	for _, p := range inst.Phases {
		if p.ID == id {
			return p, true
		}
	}
	return Phase{}, false
}

// DefaultInstallation is the two-group demo crossing: one vehicular
// and one pedestrian group alternating over two phases.
func DefaultInstallation() Installation {
	return Installation{
		Name: "demo-crossing",
		Groups: []Group{
			{ID: 1, Kind: KindVehicular, Label: "vehicular_1"},
			{ID: 2, Kind: KindPedestrian, Label: "pedestrian_1"},
		},
		Phases: []Phase{
			{ID: 1, Colors: []Color{ColorGreen, ColorRed}},
			{ID: 2, Colors: []Color{ColorRed, ColorGreen}},
		},
		Structures: []Structure{
			{ID: 1, Phases: []int{1, 2}},
		},
		Plans: []Plan{
			{
				ID:        129,
				Structure: 1,
				Cycle:     60,
				Durations: []int{23, 23},
				Starts:    []string{"00:00"},
				Transitions: Transitions{
					Vehicular:  VehicularTransition{Amber: 3, RedClearance: 2},
					Pedestrian: PedestrianTransition{GreenBlink: 5, Red: 2},
				},
			},
		},
		Detectors: Detectors{Count: 4},
	}
}

func LoadInstallation(path string) (Installation, error) {
	var inst Installation
	if err := loadToml(path, &inst); err != nil {
		return Installation{}, err
	}
	if inst.Name == "" {
		inst.Name = "crossing"
	}
	if err := ValidateInstallation(inst); err != nil {
		return Installation{}, err
	}
	return inst, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ParseStart converts an "HH:MM" plan start to minute-of-day.
func ParseStart(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid start %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func ValidateInstallation(inst Installation) error {
	if len(inst.Groups) == 0 {
		return fmt.Errorf("installation has no groups")
	}
	if len(inst.Phases) == 0 {
		return fmt.Errorf("installation has no phases")
	}
	if len(inst.Structures) == 0 {
		return fmt.Errorf("installation has no structures")
	}
	if len(inst.Plans) == 0 {
		return fmt.Errorf("installation has no plans")
	}

	seenGroups := make(map[int]bool, len(inst.Groups))
	for i, g := range inst.Groups {
		if g.ID <= 0 {
			return fmt.Errorf("group[%d] invalid id %d", i, g.ID)
		}
		if seenGroups[g.ID] {
			return fmt.Errorf("group id %d declared twice", g.ID)
		}
		seenGroups[g.ID] = true
		switch g.Kind {
		case KindVehicular, KindPedestrian, KindCyclist:
		default:
			return fmt.Errorf("group %d unknown kind %q", g.ID, g.Kind)
		}
	}

	seenPhases := make(map[int]bool, len(inst.Phases))
	for _, p := range inst.Phases {
		if seenPhases[p.ID] {
			return fmt.Errorf("phase id %d declared twice", p.ID)
		}
		seenPhases[p.ID] = true
		if len(p.Colors) != len(inst.Groups) {
			return fmt.Errorf("phase %d has %d colors for %d groups", p.ID, len(p.Colors), len(inst.Groups))
		}
	}

	seenStructures := make(map[int]bool, len(inst.Structures))
	for _, s := range inst.Structures {
		if seenStructures[s.ID] {
			return fmt.Errorf("structure id %d declared twice", s.ID)
		}
		seenStructures[s.ID] = true
		if len(s.Phases) == 0 {
			return fmt.Errorf("structure %d has no phases", s.ID)
		}
		for _, ph := range s.Phases {
			if !seenPhases[ph] {
				return fmt.Errorf("structure %d references unknown phase %d", s.ID, ph)
			}
		}
	}

	anyStart := false
	seenPlans := make(map[int]bool, len(inst.Plans))
	for _, p := range inst.Plans {
		if p.ID < 129 || p.ID > 255 {
			return fmt.Errorf("plan id %d outside 129..255", p.ID)
		}
		if seenPlans[p.ID] {
			return fmt.Errorf("plan id %d declared twice", p.ID)
		}
		seenPlans[p.ID] = true
		st, ok := inst.StructureByID(p.Structure)
		if !ok {
			return fmt.Errorf("plan %d references unknown structure %d", p.ID, p.Structure)
		}
		if p.Cycle <= 0 {
			return fmt.Errorf("plan %d cycle must be positive", p.ID)
		}
		if len(p.Durations) != len(st.Phases) {
			return fmt.Errorf("plan %d has %d durations for %d phases", p.ID, len(p.Durations), len(st.Phases))
		}
		for i, d := range p.Durations {
			if d <= 0 {
				return fmt.Errorf("plan %d duration[%d] must be positive", p.ID, i)
			}
		}
		if p.Transitions.Vehicular.Amber < 0 || p.Transitions.Vehicular.RedClearance < 0 ||
			p.Transitions.Pedestrian.GreenBlink < 0 || p.Transitions.Pedestrian.Red < 0 {
			return fmt.Errorf("plan %d has negative transition timing", p.ID)
		}
		for _, s := range p.Starts {
			if _, err := ParseStart(s); err != nil {
				return fmt.Errorf("plan %d: %w", p.ID, err)
			}
			anyStart = true
		}
	}
	if !anyStart {
		return fmt.Errorf("no plan declares a start time")
	}

	if inst.Detectors.Count < 0 {
		return fmt.Errorf("detector count must not be negative")
	}
	return nil
}
