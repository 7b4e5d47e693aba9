// Package une implements the telecontrol frame layer of UNE 135401-4:
// 7-bit payload encoding, XOR checksums and STX/ETX framing, plus a
// stream scanner that recovers frames and bare link controls from a
// TCP byte stream.
package une

import (
	"errors"
	"fmt"
)

const (
	// MaxDataBytes bounds the data section of one frame. The longest
	// message in the modeled subset is the 48-byte operating-mode
	// report; anything near the limit is line corruption.
	MaxDataBytes = 128

	// minFrameLen is STX + subaddress + code + checksum + ETX.
	minFrameLen = 5
)

var (
	ErrFraming      = errors.New("une: missing frame markers")
	ErrTruncated    = errors.New("une: frame too short")
	ErrChecksum     = errors.New("une: checksum mismatch")
	ErrDataTooLarge = errors.New("une: data section too large")
)

// Frame is one decoded protocol message. Sub, Code and Data hold 7-bit
// values; Build sets the marker bit on the way to the wire and Parse
// strips it on the way back.
type Frame struct {
	Sub  Subaddress
	Code Code
	Data []byte
}

// EncodeByte returns the on-wire form of a 7-bit value.
func EncodeByte(v byte) byte { return v&0x7F | 0x80 }

// DecodeByte strips the wire marker bit.
func DecodeByte(b byte) byte { return b & 0x7F }

// Checksum computes the 7-bit XOR checksum over subaddress, code and
// data. Marker bits cancel pairwise and the final mask drops any
// remainder, so encoded and decoded inputs produce the same value.
func Checksum(sub Subaddress, code Code, data []byte) byte {
	x := byte(sub) ^ byte(code)
	for _, b := range data {
		x ^= b
	}
	return x & 0x7F
}

// Build renders f as a complete wire frame.
func Build(f Frame) []byte {
	buf := make([]byte, 0, len(f.Data)+minFrameLen)
	buf = append(buf, STX, f.Sub.Wire(), f.Code.Wire())
	for _, b := range f.Data {
		buf = append(buf, EncodeByte(b))
	}
	buf = append(buf, EncodeByte(Checksum(f.Sub, f.Code, f.Data)), ETX)
	return buf
}

// Parse decodes one complete wire frame. EOT is accepted as terminator
// alongside ETX; some center equipment closes the last frame of a poll
// that way. The checksum is accepted with or without the marker bit.
func Parse(raw []byte) (Frame, error) {
	if len(raw) < minFrameLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(raw))
	}
	if raw[0] != STX || (raw[len(raw)-1] != ETX && raw[len(raw)-1] != EOT) {
		return Frame{}, ErrFraming
	}

	body := raw[1 : len(raw)-1] // sub, code, data..., checksum
	if len(body)-3 > MaxDataBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(body)-3)
	}

	sub := Subaddress(DecodeByte(body[0]))
	code := Code(DecodeByte(body[1]))
	data := make([]byte, len(body)-3)
	for i, b := range body[2 : len(body)-1] {
		data[i] = DecodeByte(b)
	}

	want := Checksum(sub, code, data)
	if got := body[len(body)-1]; got != want && got != want|0x80 {
		return Frame{}, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksum, got, EncodeByte(want))
	}
	return Frame{Sub: sub, Code: code, Data: data}, nil
}
