package regulator

import (
	"sort"
	"time"

	"github.com/danmuck/reguctl/internal/bus"
	"github.com/danmuck/reguctl/internal/config"
)

// scheduledPlanID picks the plan whose latest start time is at or
// before now. Before the first start of the day the last start of the
// previous day still governs, so the wrap falls back to the latest
// entry overall.
func scheduledPlanID(plans []config.Plan, now time.Time) (int, bool) {
	type entry struct {
		minute int
		plan   int
	}
	var entries []entry
	for _, p := range plans {
		for _, s := range p.Starts {
			minute, err := config.ParseStart(s)
			if err != nil {
				continue
			}
			entries = append(entries, entry{minute: minute, plan: p.ID})
		}
	}
	if len(entries) == 0 {
		return 0, false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].minute < entries[j].minute })

	nowMinute := now.Hour()*60 + now.Minute()
	selected := entries[len(entries)-1]
	for _, e := range entries {
		if e.minute <= nowMinute {
			selected = e
		}
	}
	return selected.plan, true
}

// ApplySchedule re-evaluates the time table. Only local mode follows
// the schedule; under central or manual command the active plan is
// whatever the operator ordered.
func (s *State) ApplySchedule(now time.Time) bool {
	s.mu.Lock()
	if s.mode != ModeLocal {
		s.mu.Unlock()
		return false
	}
	id, ok := scheduledPlanID(s.inst.Plans, now)
	if !ok || id == s.plan.ID {
		s.mu.Unlock()
		return false
	}
	if err := s.selectPlanLocked(id); err != nil {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.publish(bus.Event{Kind: bus.KindPlanChanged, Plan: id, Detail: "schedule"})
	return true
}
