package une

import "fmt"

// Single-byte link controls. These travel outside STX/ETX framing and
// are never checksummed.
const (
	STX byte = 0x02
	ETX byte = 0x03
	EOT byte = 0x04
	ACK byte = 0x06
	DLE byte = 0x10
	DC1 byte = 0x11
	DC3 byte = 0x13
	NAK byte = 0x15
	DET byte = 0x20
)

// Subaddress selects the cabinet unit a frame addresses. Values are in
// the decoded 7-bit domain; the wire carries them with the high bit set.
type Subaddress byte

const (
	SubStatus Subaddress = 0x00 // 0x80 on the wire, regulator status unit
	SubPlans  Subaddress = 0x01 // 0x81 on the wire, plans unit
)

// Code identifies a message type, decoded 7-bit domain.
type Code byte

const (
	CodeSync        Code = 0x11 // 0x91 SNC clock and cycle synchronization
	CodePlanSelect  Code = 0x12 // 0x92 SEP plan selection
	CodeTraffic     Code = 0x14 // 0x94 EST traffic status
	CodeModeReport  Code = 0x33 // 0xB3 CFA operating-mode report
	CodeAlarms      Code = 0x34 // 0xB4 ALR alarm summary
	CodeConfig      Code = 0x35 // 0xB5 CFG configuration block
	CodeTables      Code = 0x36 // 0xB6 TPR timing-plan tables
	CodeIncompat    Code = 0x37 // 0xB7 INC incompatibility matrix
	CodeGroupState  Code = 0x39 // 0xB9 EGR signal-group states
	CodePlanOrder   Code = 0x51 // 0xD1 SEP plan-selection order
	CodeTimeSet     Code = 0x52 // 0xD2 PHF date/time set
	CodeStates      Code = 0x54 // 0xD4 mode and representation set
	CodePhaseChange Code = 0x55 // 0xD5 phase-change notice
	CodeDirectQuery Code = 0x5B // 0xDB direct group-state query
	CodeDirectCmd   Code = 0x5C // 0xDC direct group command
	CodeClearAlarms Code = 0x5D // 0xDD BAL alarm clear
	CodeDetectors   Code = 0x23 // 0xA3 DTR detector counters
	CodeDetect      Code = 0x20 // framed form of the DET poll byte
)

// Wire is the encoded on-wire value of s.
func (s Subaddress) Wire() byte { return EncodeByte(byte(s)) }

// Wire is the encoded on-wire value of c.
func (c Code) Wire() byte { return EncodeByte(byte(c)) }

func (c Code) String() string {
	switch c {
	case CodeSync:
		return "sync"
	case CodePlanSelect:
		return "plan_select"
	case CodeTraffic:
		return "traffic"
	case CodeModeReport:
		return "mode_report"
	case CodeAlarms:
		return "alarms"
	case CodeConfig:
		return "config"
	case CodeTables:
		return "tables"
	case CodeIncompat:
		return "incompat"
	case CodeGroupState:
		return "group_state"
	case CodePlanOrder:
		return "plan_order"
	case CodeTimeSet:
		return "time_set"
	case CodeStates:
		return "states"
	case CodePhaseChange:
		return "phase_change"
	case CodeDirectQuery:
		return "direct_query"
	case CodeDirectCmd:
		return "direct_cmd"
	case CodeClearAlarms:
		return "clear_alarms"
	case CodeDetectors:
		return "detectors"
	case CodeDetect:
		return "detect"
	}
	return fmt.Sprintf("code_0x%02X", c.Wire())
}

// IsControl reports whether b is a bare link-control byte.
func IsControl(b byte) bool {
	switch b {
	case ACK, NAK, EOT, DLE, DC1, DC3, DET:
		return true
	}
	return false
}

// ControlName is the log and journal label for a control byte.
func ControlName(b byte) string {
	switch b {
	case ACK:
		return "ack"
	case NAK:
		return "nak"
	case EOT:
		return "eot"
	case DLE:
		return "dle"
	case DC1:
		return "dc1"
	case DC3:
		return "dc3"
	case DET:
		return "det"
	}
	return fmt.Sprintf("control_0x%02X", b)
}
