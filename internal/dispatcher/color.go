package dispatcher

import (
	"fmt"

	"github.com/twistedxcom/termina/internal/osc"
)

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R, G, B uint8
}

// colorState tracks the palette and dynamic colors so queries can be
// answered and resets can restore defaults.
type colorState struct {
	palette  [256]RGB
	fg       RGB
	bg       RGB
	cursor   RGB
	defaults struct {
		palette [256]RGB
		fg      RGB
		bg      RGB
		cursor  RGB
	}
}

func newColorState() *colorState {
	s := &colorState{}
	s.defaults.palette = standardPalette()
	s.defaults.fg = RGB{0xff, 0xff, 0xff}
	s.defaults.bg = RGB{0x00, 0x00, 0x00}
	s.defaults.cursor = RGB{0xff, 0xff, 0xff}
	s.resetAll()
	return s
}

func (s *colorState) resetAll() {
	s.palette = s.defaults.palette
	s.fg = s.defaults.fg
	s.bg = s.defaults.bg
	s.cursor = s.defaults.cursor
}

func (s *colorState) get(t osc.ColorTarget) RGB {
	switch t.Kind {
	case osc.ColorForeground:
		return s.fg
	case osc.ColorBackground:
		return s.bg
	case osc.ColorCursor:
		return s.cursor
	default:
		return s.palette[t.Index]
	}
}

func (s *colorState) set(t osc.ColorTarget, c RGB) {
	switch t.Kind {
	case osc.ColorForeground:
		s.fg = c
	case osc.ColorBackground:
		s.bg = c
	case osc.ColorCursor:
		s.cursor = c
	default:
		s.palette[t.Index] = c
	}
}

func (s *colorState) reset(t osc.ColorTarget) {
	switch t.Kind {
	case osc.ColorForeground:
		s.fg = s.defaults.fg
	case osc.ColorBackground:
		s.bg = s.defaults.bg
	case osc.ColorCursor:
		s.cursor = s.defaults.cursor
	default:
		s.palette[t.Index] = s.defaults.palette[t.Index]
	}
}

// queryCode is the OSC code a color report answers with.
func queryCode(k osc.ColorKind) int {
	switch k {
	case osc.ColorForeground:
		return 10
	case osc.ColorBackground:
		return 11
	case osc.ColorCursor:
		return 12
	default:
		return 4
	}
}

// formatReport renders the reply to a color query. Components are widened
// to 16 bits, the form xterm reports in.
func formatReport(t osc.ColorTarget, c RGB, term osc.Terminator) []byte {
	r := uint16(c.R) * 0x101
	g := uint16(c.G) * 0x101
	b := uint16(c.B) * 0x101
	if t.Kind == osc.ColorPalette {
		return []byte(fmt.Sprintf("\x1b]4;%d;rgb:%04x/%04x/%04x%s", t.Index, r, g, b, term))
	}
	return []byte(fmt.Sprintf("\x1b]%d;rgb:%04x/%04x/%04x%s", queryCode(t.Kind), r, g, b, term))
}

// ParseColor understands the two specs clients actually send: X11
// "rgb:<r>/<g>/<b>" with 1-4 hex digits per component, and "#rrggbb".
func ParseColor(spec []byte) (RGB, bool) {
	if len(spec) == 7 && spec[0] == '#' {
		r, okR := hexByte(spec[1], spec[2])
		g, okG := hexByte(spec[3], spec[4])
		b, okB := hexByte(spec[5], spec[6])
		if okR && okG && okB {
			return RGB{r, g, b}, true
		}
		return RGB{}, false
	}

	const prefix = "rgb:"
	if len(spec) <= len(prefix) || string(spec[:len(prefix)]) != prefix {
		return RGB{}, false
	}
	var comps [3]uint8
	rest := spec[len(prefix):]
	for i := 0; i < 3; i++ {
		end := 0
		for end < len(rest) && rest[end] != '/' {
			end++
		}
		v, ok := hexComponent(rest[:end])
		if !ok {
			return RGB{}, false
		}
		comps[i] = v
		if i < 2 {
			if end >= len(rest) {
				return RGB{}, false
			}
			rest = rest[end+1:]
		} else if end != len(rest) {
			return RGB{}, false
		}
	}
	return RGB{comps[0], comps[1], comps[2]}, true
}

// hexComponent scales a 1-4 digit hex value to 8 bits per the X11 rule:
// the digits are the most significant bits of a 16-bit component.
func hexComponent(s []byte) (uint8, bool) {
	if len(s) == 0 || len(s) > 4 {
		return 0, false
	}
	var v uint32
	for _, c := range s {
		d, ok := hexDigit(c)
		if !ok {
			return 0, false
		}
		v = v<<4 | uint32(d)
	}
	v <<= 4 * (4 - uint(len(s)))
	return uint8(v >> 8), true
}

func hexByte(hi, lo byte) (uint8, bool) {
	h, okH := hexDigit(hi)
	l, okL := hexDigit(lo)
	return h<<4 | l, okH && okL
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// standardPalette builds the conventional 256-color table: 16 ANSI colors,
// a 6x6x6 cube, and a 24-step grayscale ramp.
func standardPalette() [256]RGB {
	var p [256]RGB
	ansi := [16]RGB{
		{0x00, 0x00, 0x00}, {0xcd, 0x00, 0x00}, {0x00, 0xcd, 0x00}, {0xcd, 0xcd, 0x00},
		{0x00, 0x00, 0xee}, {0xcd, 0x00, 0xcd}, {0x00, 0xcd, 0xcd}, {0xe5, 0xe5, 0xe5},
		{0x7f, 0x7f, 0x7f}, {0xff, 0x00, 0x00}, {0x00, 0xff, 0x00}, {0xff, 0xff, 0x00},
		{0x5c, 0x5c, 0xff}, {0xff, 0x00, 0xff}, {0x00, 0xff, 0xff}, {0xff, 0xff, 0xff},
	}
	copy(p[:16], ansi[:])

	levels := [6]uint8{0x00, 0x5f, 0x87, 0xaf, 0xd7, 0xff}
	for i := 0; i < 216; i++ {
		p[16+i] = RGB{levels[i/36], levels[i/6%6], levels[i%6]}
	}
	for i := 0; i < 24; i++ {
		v := uint8(8 + i*10)
		p[232+i] = RGB{v, v, v}
	}
	return p
}
