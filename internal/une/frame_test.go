package une

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	in := Frame{Sub: SubStatus, Code: CodeGroupState, Data: []byte{0x10, 0x01, 0x04}}
	out, err := Parse(Build(in))
	if err != nil {
		t.Fatalf("parse built frame: %v", err)
	}
	if out.Sub != in.Sub || out.Code != in.Code || !bytes.Equal(out.Data, in.Data) {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", out, in)
	}
}

func TestBuildMatchesCapturedSyncRequest(t *testing.T) {
	got := Build(Frame{Sub: SubPlans, Code: CodeSync})
	want := []byte{STX, 0x81, 0x91, 0x90, ETX}
	if !bytes.Equal(got, want) {
		t.Fatalf("sync request bytes: got=% X want=% X", got, want)
	}
}

func TestBuildMatchesCapturedGroupState(t *testing.T) {
	got := Build(Frame{Sub: SubStatus, Code: CodeGroupState, Data: []byte{0x10, 0x01}})
	want := []byte{STX, 0x80, 0xB9, 0x90, 0x81, 0xA8, ETX}
	if !bytes.Equal(got, want) {
		t.Fatalf("group state bytes: got=% X want=% X", got, want)
	}
}

func TestParseAcceptsMaskedChecksum(t *testing.T) {
	raw := []byte{STX, 0x80, 0xB9, 0x90, 0x81, 0x28, ETX}
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("masked checksum rejected: %v", err)
	}
	if f.Code != CodeGroupState {
		t.Fatalf("code: got=%v want=%v", f.Code, CodeGroupState)
	}
}

func TestParseAcceptsEOTTerminator(t *testing.T) {
	raw := Build(Frame{Sub: SubPlans, Code: CodeSync})
	raw[len(raw)-1] = EOT
	if _, err := Parse(raw); err != nil {
		t.Fatalf("EOT-terminated frame rejected: %v", err)
	}
}

func TestParseChecksumMismatch(t *testing.T) {
	raw := Build(Frame{Sub: SubPlans, Code: CodeSync})
	raw[3] ^= 0x01
	_, err := Parse(raw)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse([]byte{STX, 0x81, ETX})
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParseMissingMarkers(t *testing.T) {
	_, err := Parse([]byte{0x81, 0x91, 0x90, 0x03, 0x00})
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestChecksumEncodedDecodedEquivalence(t *testing.T) {
	data := []byte{0x10, 0x01, 0x0C}
	encoded := make([]byte, len(data))
	for i, b := range data {
		encoded[i] = EncodeByte(b)
	}
	if a, b := Checksum(SubStatus, CodeGroupState, data), Checksum(SubStatus, CodeGroupState, encoded); a != b {
		t.Fatalf("checksum differs across domains: decoded=0x%02X encoded=0x%02X", a, b)
	}
}
