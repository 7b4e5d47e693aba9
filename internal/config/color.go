package config

import "fmt"

// Color is the internal lamp-state code of one signal group. The
// numeric values are fixed by the cabinet firmware and travel as-is in
// direct-query replies, so they must not be reordered.
type Color int

const (
	ColorOff        Color = 0
	ColorGreen      Color = 1
	ColorAmber      Color = 2
	ColorRed        Color = 3
	ColorRedBlink   Color = 4
	ColorGreenBlink Color = 5
	ColorAmberBlink Color = 6
)

var colorNames = map[Color]string{
	ColorOff:        "off",
	ColorGreen:      "green",
	ColorAmber:      "amber",
	ColorRed:        "red",
	ColorRedBlink:   "red_blink",
	ColorGreenBlink: "green_blink",
	ColorAmberBlink: "amber_blink",
}

func ParseColor(s string) (Color, error) {
	for c, name := range colorNames {
		if name == s {
			return c, nil
		}
	}
	return ColorOff, fmt.Errorf("unknown color: %q", s)
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color_%d", int(c))
}

// Blinking reports whether c is one of the intermittent states.
func (c Color) Blinking() bool {
	return c == ColorRedBlink || c == ColorGreenBlink || c == ColorAmberBlink
}

// Base returns the steady color behind a blinking state.
func (c Color) Base() Color {
	switch c {
	case ColorRedBlink:
		return ColorRed
	case ColorGreenBlink:
		return ColorGreen
	case ColorAmberBlink:
		return ColorAmber
	}
	return c
}

// UnmarshalText lets phase tables name colors instead of numbering
// them.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
