package regulator

import "github.com/danmuck/reguctl/internal/config"

// groupColorsLocked computes what every head shows right now. The
// representation master state outranks everything, then startup
// staging, then transition clearance, then the stable phase table.
func (s *State) groupColorsLocked() []config.Color {
	colors := make([]config.Color, len(s.inst.Groups))

	switch s.representation {
	case ReprOff:
		return colors // zero value is ColorOff
	case ReprBlink:
		for i := range colors {
			colors[i] = config.ColorAmberBlink
		}
		return colors
	}

	if s.startupStage > 0 {
		s.startupColors(colors)
		s.applyAlwaysAmber(colors)
		return colors
	}

	st := s.steps[s.position]
	if st.transition {
		s.transitionColors(colors, st)
	} else {
		phase, _ := s.inst.PhaseByID(st.phase)
		copy(colors, phase.Colors)
	}
	s.applyAlwaysAmber(colors)
	return colors
}

func (s *State) startupColors(colors []config.Color) {
	for i, g := range s.inst.Groups {
		switch s.startupStage {
		case 1:
			if g.Kind == config.KindVehicular {
				colors[i] = config.ColorAmberBlink
			} else {
				colors[i] = config.ColorOff
			}
		case 2:
			if g.Kind == config.KindVehicular {
				colors[i] = config.ColorAmber
			} else {
				colors[i] = config.ColorOff
			}
		default:
			colors[i] = config.ColorRed
		}
	}
}

// transitionColors clears the outgoing phase: a group keeping its
// color across both phases holds it, a group leaving green runs its
// clearance interval, everything else shows red.
func (s *State) transitionColors(colors []config.Color, st step) {
	from, _ := s.inst.PhaseByID(st.phase)
	to, _ := s.inst.PhaseByID(st.next)

	for i, g := range s.inst.Groups {
		fromC := from.Colors[i]
		toC := to.Colors[i]
		switch {
		case fromC == toC:
			colors[i] = fromC
		case fromC.Base() == config.ColorGreen:
			colors[i] = s.clearanceColor(g)
		default:
			colors[i] = config.ColorRed
		}
	}
}

func (s *State) clearanceColor(g config.Group) config.Color {
	if g.Kind == config.KindVehicular {
		if s.stepElapsed < s.plan.Transitions.Vehicular.Amber {
			return config.ColorAmber
		}
		return config.ColorRed
	}
	if s.stepElapsed < s.plan.Transitions.Pedestrian.GreenBlink {
		return config.ColorGreenBlink
	}
	return config.ColorRed
}

func (s *State) applyAlwaysAmber(colors []config.Color) {
	for i, g := range s.inst.Groups {
		if g.AlwaysAmber {
			colors[i] = config.ColorAmber
		}
	}
}
