package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/danmuck/reguctl/internal/center"
	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/une"
)

// lampDot renders one signal group as a colored dot plus its name.
// Blinking lamps carry a trailing asterisk.
func lampDot(name string, blinking bool) string {
	c := color.New(color.FgHiBlack)
	switch {
	case strings.HasPrefix(name, "red"):
		c = color.New(color.FgRed)
	case strings.HasPrefix(name, "amber"):
		c = color.New(color.FgYellow)
	case strings.HasPrefix(name, "green"):
		c = color.New(color.FgGreen)
	}
	label := name
	if blinking && !strings.Contains(name, "blink") {
		label += "*"
	}
	return fmt.Sprintf("%s %s", c.Sprint("●"), label)
}

func renderSync(st center.SyncStatus) string {
	return fmt.Sprintf("plan %d  clock %02d:%02d:%02d  phase %d  cycle %ds",
		st.Plan, st.Hour, st.Minute, st.Second, st.Phase, st.Cycle)
}

func renderTraffic(st center.TrafficStatus) string {
	source := "local"
	if st.Central {
		source = "central"
	}
	coordination := "free-running"
	if st.Coordinated {
		coordination = "coordinated"
	}
	return fmt.Sprintf("representation %s  source %s  %s", st.Representation, source, coordination)
}

func renderAlarms(st center.AlarmStatus) string {
	var parts []string
	if st.Conflict {
		parts = append(parts, color.New(color.FgRed).Sprint("CONFLICT"))
	}
	if st.LampFailure {
		parts = append(parts, color.New(color.FgYellow).Sprint("LAMP FAILURE"))
	}
	if len(parts) == 0 {
		parts = append(parts, color.New(color.FgGreen).Sprint("clear"))
	}
	if st.CentralCommand {
		parts = append(parts, "central command")
	}
	return "alarms: " + strings.Join(parts, "  ")
}

func renderGroups(groups []center.GroupColor) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, lampDot(g.Name, g.Blinking))
	}
	return "groups: " + strings.Join(parts, "  ")
}

// renderDirectState renders the raw internal lamp codes of a direct
// query reply.
func renderDirectState(codes []byte) string {
	parts := make([]string, 0, len(codes))
	for _, b := range codes {
		name := config.Color(b).String()
		parts = append(parts, lampDot(name, config.Color(b).Blinking()))
	}
	return "groups: " + strings.Join(parts, "  ")
}

func renderDetectors(data []byte) string {
	parts := make([]string, 0, len(data))
	for i, b := range data {
		parts = append(parts, fmt.Sprintf("d%d=%d", i+1, b))
	}
	if len(parts) == 0 {
		return "detectors: none"
	}
	return "detectors: " + strings.Join(parts, "  ")
}

// renderFrame formats one spontaneous report for the watch stream.
func renderFrame(f une.Frame, raw bool) string {
	switch f.Code {
	case une.CodeGroupState:
		return renderGroups(center.DecodeGroupState(f.Data))
	case une.CodeSync:
		st, err := center.DecodeSync(f.Data)
		if err != nil {
			break
		}
		return renderSync(st)
	case une.CodeTraffic:
		st, err := center.DecodeTraffic(f.Data)
		if err != nil {
			break
		}
		return renderTraffic(st)
	case une.CodeAlarms:
		st, err := center.DecodeAlarms(f.Data)
		if err != nil {
			break
		}
		return renderAlarms(st)
	case une.CodePhaseChange:
		if len(f.Data) > 0 {
			return fmt.Sprintf("phase change -> %d", f.Data[0])
		}
	case une.CodeDetectors:
		return renderDetectors(f.Data)
	case une.CodeModeReport:
		return fmt.Sprintf("mode report (%d bytes)", len(f.Data))
	}
	if raw {
		return fmt.Sprintf("%s %s", f.Code, hex.EncodeToString(f.Data))
	}
	return fmt.Sprintf("%s (%d bytes)", f.Code, len(f.Data))
}
