package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/testutil/testlog"
	"github.com/danmuck/reguctl/internal/une"
)

func snapshot() regulator.Snapshot {
	return regulator.Snapshot{
		Name:           "test-crossing",
		Mode:           regulator.ModeCentral,
		Representation: regulator.ReprColor,
		PlanID:         129,
		Phase:          2,
		CycleElapsed:   150,
		CycleLength:    160,
		GroupColors:    []config.Color{config.ColorGreen, config.ColorRed, config.ColorAmberBlink},
		DetectorCounts: []int{3, 200},
	}
}

func TestGroupStateWireEncoding(t *testing.T) {
	testlog.Start(t)
	f := GroupState(snapshot())
	if f.Sub != une.SubStatus || f.Code != une.CodeGroupState {
		t.Fatalf("frame header: %+v", f)
	}
	want := []byte{0x10, 0x01, 0x0C}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("group state data: got=% X want=% X", f.Data, want)
	}
}

func TestModeReportIsFixedZero(t *testing.T) {
	f := ModeReport(une.SubStatus)
	if len(f.Data) != 48 {
		t.Fatalf("mode report length: got=%d want=48", len(f.Data))
	}
	for i, b := range f.Data {
		if b != 0 {
			t.Fatalf("mode report byte %d: got=0x%02X want=0x00", i, b)
		}
	}
}

func TestSyncLayout(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 42, 7, 0, time.UTC)
	f := Sync(snapshot(), une.SubPlans, now)
	want := []byte{1, 10, 42, 7, 2, 150 >> 7 & 0x7F, 150 & 0x7F, 0}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("sync data: got=% X want=% X", f.Data, want)
	}
}

func TestTrafficReflectsCommandSource(t *testing.T) {
	snap := snapshot()
	f := Traffic(snap, une.SubPlans)
	want := []byte{2, 1, 3, 0}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("central traffic data: got=% X want=% X", f.Data, want)
	}

	snap.Mode = regulator.ModeLocal
	f = Traffic(snap, une.SubPlans)
	want = []byte{2, 0, 1, 0}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("local traffic data: got=% X want=% X", f.Data, want)
	}
}

func TestAlarmBits(t *testing.T) {
	snap := snapshot()
	snap.LampAlarm = true
	snap.ConflictAlarm = true
	f := Alarms(snap, une.SubStatus)
	want := []byte{0x11, 0x00, 0x10, 0x00}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("alarm data: got=% X want=% X", f.Data, want)
	}

	snap.Mode = regulator.ModeLocal
	snap.LampAlarm = false
	snap.ConflictAlarm = false
	f = Alarms(snap, une.SubStatus)
	want = []byte{0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("quiet alarm data: got=% X want=% X", f.Data, want)
	}
}

func TestDirectStateCarriesInternalCodes(t *testing.T) {
	f := DirectState(snapshot(), une.SubStatus)
	want := []byte{1, 3, 6}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("direct state data: got=% X want=% X", f.Data, want)
	}
}

func TestDetectorCountsWrapTo7Bits(t *testing.T) {
	f := DetectorCounts(snapshot())
	want := []byte{3, 200 & 0x7F}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("detector data: got=% X want=% X", f.Data, want)
	}
}

func TestStatusBurstOrderAndSubaddress(t *testing.T) {
	frames := StatusBurst(snapshot())
	if len(frames) != 3 {
		t.Fatalf("burst length: got=%d want=3", len(frames))
	}
	wantCodes := []une.Code{une.CodeAlarms, une.CodeModeReport, une.CodeGroupState}
	for i, f := range frames {
		if f.Code != wantCodes[i] {
			t.Fatalf("burst[%d] code: got=%v want=%v", i, f.Code, wantCodes[i])
		}
		if f.Sub != une.SubStatus {
			t.Fatalf("burst[%d] subaddress: got=%v want=status", i, f.Sub)
		}
	}
}

func TestPhaseChangeOnPlansSubaddress(t *testing.T) {
	f := PhaseChange(2)
	if f.Sub != une.SubPlans || len(f.Data) != 1 || f.Data[0] != 2 {
		t.Fatalf("phase change frame: %+v", f)
	}
}
