package center

import (
	"errors"
	"fmt"
)

// ErrShortReport reports a reply with fewer data bytes than its layout
// requires.
var ErrShortReport = errors.New("center: report too short")

// GroupColor is one signal group decoded from a group-state report.
type GroupColor struct {
	Raw      byte
	Name     string
	Blinking bool
}

// DecodeGroupState expands the per-group state bytes: bit 0 red, bit 2
// amber, bit 4 green, bit 3 intermittent.
func DecodeGroupState(data []byte) []GroupColor {
	groups := make([]GroupColor, len(data))
	for i, b := range data {
		name := "off"
		switch {
		case b&0x01 != 0:
			name = "red"
		case b&0x04 != 0:
			name = "amber"
		case b&0x10 != 0:
			name = "green"
		}
		groups[i] = GroupColor{Raw: b, Name: name, Blinking: b&0x08 != 0}
	}
	return groups
}

// SyncStatus is the decoded clock and cycle report.
type SyncStatus struct {
	Plan   int // center-facing plan number
	Hour   int
	Minute int
	Second int
	Phase  int
	Cycle  int // seconds into the cycle
}

func DecodeSync(data []byte) (SyncStatus, error) {
	if len(data) < 7 {
		return SyncStatus{}, fmt.Errorf("%w: sync carries %d bytes", ErrShortReport, len(data))
	}
	return SyncStatus{
		Plan:   int(data[0]),
		Hour:   int(data[1]),
		Minute: int(data[2]),
		Second: int(data[3]),
		Phase:  int(data[4]),
		Cycle:  int(data[5])<<7 | int(data[6]),
	}, nil
}

// TrafficStatus is the decoded representation and command-source report.
type TrafficStatus struct {
	Representation string
	Central        bool
	Coordinated    bool
}

func DecodeTraffic(data []byte) (TrafficStatus, error) {
	if len(data) < 3 {
		return TrafficStatus{}, fmt.Errorf("%w: traffic carries %d bytes", ErrShortReport, len(data))
	}
	repr := "color"
	switch data[0] {
	case 0:
		repr = "off"
	case 1:
		repr = "blink"
	}
	return TrafficStatus{
		Representation: repr,
		Central:        data[1] == 0x01,
		Coordinated:    data[2] == 0x03,
	}, nil
}

// AlarmStatus is the decoded alarm summary.
type AlarmStatus struct {
	Conflict       bool
	LampFailure    bool
	CentralCommand bool
}

func DecodeAlarms(data []byte) (AlarmStatus, error) {
	if len(data) < 3 {
		return AlarmStatus{}, fmt.Errorf("%w: alarms carries %d bytes", ErrShortReport, len(data))
	}
	return AlarmStatus{
		Conflict:       data[0]&0x01 != 0,
		LampFailure:    data[0]&0x10 != 0,
		CentralCommand: data[2]&0x10 != 0,
	}, nil
}
