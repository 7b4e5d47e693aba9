package une

// maxScanBuffer bounds bytes retained while waiting for a frame
// terminator. Oldest bytes are dropped past this point.
const maxScanBuffer = 4096

// Token is one unit recovered from the stream: a complete raw frame
// (Raw non-nil, ready for Parse) or a bare link-control byte.
type Token struct {
	Raw     []byte
	Control byte
}

// Scanner splits a raw byte stream into frames and link controls. One
// Scanner serves one connection; it is not safe for concurrent use.
type Scanner struct {
	buf []byte
}

// Append adds freshly read bytes to the scan buffer.
func (s *Scanner) Append(p []byte) {
	s.buf = append(s.buf, p...)
	if len(s.buf) > maxScanBuffer {
		s.buf = s.buf[len(s.buf)-maxScanBuffer:]
	}
}

// Next returns the next recovered token. ok is false when the buffer
// holds no complete unit; bytes between frames that are neither STX
// nor a link control are dropped as line noise.
func (s *Scanner) Next() (tok Token, ok bool) {
	for len(s.buf) > 0 {
		switch b := s.buf[0]; {
		case b == STX:
			end := -1
			for i := 1; i < len(s.buf); i++ {
				if s.buf[i] == ETX || s.buf[i] == EOT {
					end = i
					break
				}
			}
			if end < 0 {
				return Token{}, false
			}
			raw := make([]byte, end+1)
			copy(raw, s.buf[:end+1])
			s.buf = s.buf[end+1:]
			return Token{Raw: raw}, true
		case IsControl(b):
			s.buf = s.buf[1:]
			return Token{Control: b}, true
		default:
			s.buf = s.buf[1:]
		}
	}
	return Token{}, false
}
