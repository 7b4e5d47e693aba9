// Package report builds the center-facing telecontrol messages from
// regulator snapshots. Builders are pure; the serving layer decides
// when frames go out.
package report

import (
	"time"

	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/une"
)

// modeReportBytes is the fixed size of the operating-mode report. The
// field units pad the whole block with zeros and let the traffic
// status message carry the real mode; center software relies on that.
const modeReportBytes = 48

// wireColor renders an internal lamp code in the group-state encoding:
// bit 0 red, bit 2 amber, bit 4 green, bit 3 intermittent. Unknown
// codes degrade to red.
func wireColor(c config.Color) byte {
	switch c {
	case config.ColorOff:
		return 0x00
	case config.ColorGreen:
		return 0x10
	case config.ColorGreenBlink:
		return 0x18
	case config.ColorAmber:
		return 0x04
	case config.ColorAmberBlink:
		return 0x0C
	case config.ColorRed:
		return 0x01
	case config.ColorRedBlink:
		return 0x09
	}
	return 0x01
}

// GroupState reports one byte per signal group. Always on the status
// subaddress regardless of what the center last asked on.
func GroupState(snap regulator.Snapshot) une.Frame {
	data := make([]byte, len(snap.GroupColors))
	for i, c := range snap.GroupColors {
		data[i] = wireColor(c)
	}
	return une.Frame{Sub: une.SubStatus, Code: une.CodeGroupState, Data: data}
}

// ModeReport is the fixed-zero operating-mode block.
func ModeReport(sub une.Subaddress) une.Frame {
	return une.Frame{Sub: sub, Code: une.CodeModeReport, Data: make([]byte, modeReportBytes)}
}

// Sync reports the active plan, wall clock, phase and cycle position.
func Sync(snap regulator.Snapshot, sub une.Subaddress, now time.Time) une.Frame {
	data := []byte{
		byte(snap.PlanExternal()),
		byte(now.Hour()),
		byte(now.Minute()),
		byte(now.Second()),
		byte(snap.Phase),
		byte(snap.CycleElapsed >> 7 & 0x7F),
		byte(snap.CycleElapsed & 0x7F),
		0x00, // seconds to next sync point, unused
	}
	return une.Frame{Sub: sub, Code: une.CodeSync, Data: data}
}

// Traffic reports representation, plan source and coordination.
func Traffic(snap regulator.Snapshot, sub une.Subaddress) une.Frame {
	source, coordination := byte(0), byte(1)
	if snap.Mode == regulator.ModeCentral {
		source, coordination = 1, 3
	}
	data := []byte{byte(snap.Representation), source, coordination, 0x00}
	return une.Frame{Sub: sub, Code: une.CodeTraffic, Data: data}
}

// Alarms reports the alarm summary: conflict and lamp-failure bits,
// plus the central-command bit.
func Alarms(snap regulator.Snapshot, sub une.Subaddress) une.Frame {
	var b0, b2 byte
	if snap.ConflictAlarm {
		b0 |= 0x01
	}
	if snap.LampAlarm {
		b0 |= 0x10
	}
	if snap.Mode == regulator.ModeCentral {
		b2 |= 0x10
	}
	return une.Frame{Sub: sub, Code: une.CodeAlarms, Data: []byte{b0, 0x00, b2, 0x00}}
}

// PhaseChange announces the phase that just began. Always on the plans
// subaddress.
func PhaseChange(phase int) une.Frame {
	return une.Frame{Sub: une.SubPlans, Code: une.CodePhaseChange, Data: []byte{byte(phase)}}
}

// EmptyEcho confirms an order with a dataless frame of the same code.
func EmptyEcho(sub une.Subaddress, code une.Code) une.Frame {
	return une.Frame{Sub: sub, Code: code}
}

// DirectState answers a direct query with the raw internal lamp codes.
func DirectState(snap regulator.Snapshot, sub une.Subaddress) une.Frame {
	data := make([]byte, len(snap.GroupColors))
	for i, c := range snap.GroupColors {
		data[i] = byte(c)
	}
	return une.Frame{Sub: sub, Code: une.CodeDirectQuery, Data: data}
}

// DetectorCounts reports the pass counter of every detector, wrapped
// to 7 bits.
func DetectorCounts(snap regulator.Snapshot) une.Frame {
	data := make([]byte, len(snap.DetectorCounts))
	for i, c := range snap.DetectorCounts {
		data[i] = byte(c & 0x7F)
	}
	return une.Frame{Sub: une.SubStatus, Code: une.CodeDetectors, Data: data}
}

// StatusBurst is the spontaneous report set: alarms, operating mode,
// group states, in that order. Sent at session establishment and after
// every mode or plan change.
func StatusBurst(snap regulator.Snapshot) []une.Frame {
	return []une.Frame{
		Alarms(snap, une.SubStatus),
		ModeReport(une.SubStatus),
		GroupState(snap),
	}
}
