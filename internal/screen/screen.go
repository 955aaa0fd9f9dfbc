// Package screen is the scrollback collaborator the graphics store talks
// to: a tracked-position ("pin") registry plus grid geometry. Cell content
// itself lives elsewhere; rows are addressed in scrollback-absolute terms
// so pins survive scrolling, and trimming clamps rather than invalidates.
package screen

import (
	"errors"
	"log/slog"

	"github.com/twistedxcom/termina/internal/graphics"
	"github.com/twistedxcom/termina/internal/logging"
)

var screenLog = logging.ForComponent(logging.CompGraphics)

// ErrOutOfBounds reports a pin request outside the grid.
var ErrOutOfBounds = errors.New("screen: point out of bounds")

// Pin is a tracked position handle. It is created only by Screen.TrackPin.
type Pin struct {
	pt graphics.Point
}

// Point returns the pin's current position.
func (p *Pin) Point() graphics.Point { return p.pt }

// Screen implements graphics.Screen.
type Screen struct {
	cols  int
	rows  int
	cellW int
	cellH int

	// top is the absolute row index of the oldest retained line. Trimming
	// scrollback advances it.
	top int
	// bottom is one past the newest absolute row.
	bottom int

	pins map[*Pin]struct{}
}

// New creates a screen of cols x rows cells with the given cell pixel size.
func New(cols, rows, cellW, cellH int) *Screen {
	return &Screen{
		cols:   cols,
		rows:   rows,
		cellW:  cellW,
		cellH:  cellH,
		bottom: rows,
		pins:   make(map[*Pin]struct{}),
	}
}

// Cols returns the terminal width in cells.
func (s *Screen) Cols() int { return s.cols }

// Rows returns the terminal height in cells.
func (s *Screen) Rows() int { return s.rows }

// CellSize returns the pixel dimensions of one cell.
func (s *Screen) CellSize() (int, int) { return s.cellW, s.cellH }

// TrackPin registers a tracked position and returns its pin.
func (s *Screen) TrackPin(pt graphics.Point) (graphics.Pin, error) {
	if pt.X < 0 || pt.X >= s.cols || pt.Y < s.top || pt.Y >= s.bottom {
		return nil, ErrOutOfBounds
	}
	pin := &Pin{pt: pt}
	s.pins[pin] = struct{}{}
	return pin, nil
}

// ReleasePin unregisters a pin. Releasing a pin twice, or one this screen
// never issued, is a caller bug; it is logged and otherwise ignored so a
// bookkeeping slip cannot take the session down.
func (s *Screen) ReleasePin(p graphics.Pin) {
	pin, ok := p.(*Pin)
	if !ok {
		screenLog.Warn("released foreign pin", slog.String("type", "unknown"))
		return
	}
	if _, tracked := s.pins[pin]; !tracked {
		screenLog.Warn("pin released twice",
			slog.Int("x", pin.pt.X), slog.Int("y", pin.pt.Y))
		return
	}
	delete(s.pins, pin)
}

// PinCount returns the number of live pins.
func (s *Screen) PinCount() int { return len(s.pins) }

// Scroll advances the grid by n rows: new absolute rows come into
// existence at the bottom. Pins do not move; they are absolute.
func (s *Screen) Scroll(n int) {
	if n > 0 {
		s.bottom += n
	}
}

// Trim discards the oldest n rows of scrollback. Pins above the new top
// clamp to it, staying valid as the glossary requires.
func (s *Screen) Trim(n int) {
	if n <= 0 {
		return
	}
	s.top += n
	if s.top > s.bottom {
		s.top = s.bottom
	}
	for pin := range s.pins {
		if pin.pt.Y < s.top {
			pin.pt.Y = s.top
		}
	}
}

// Resize changes the grid dimensions, clamping pin columns into range.
func (s *Screen) Resize(cols, rows int) {
	s.cols = cols
	s.rows = rows
	if s.bottom-s.top < rows {
		s.bottom = s.top + rows
	}
	for pin := range s.pins {
		if pin.pt.X >= cols {
			pin.pt.X = cols - 1
		}
	}
}

// SetCellSize updates the per-cell pixel dimensions (font or DPI change).
func (s *Screen) SetCellSize(w, h int) {
	s.cellW = w
	s.cellH = h
}
