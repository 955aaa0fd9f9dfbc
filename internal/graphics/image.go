// Package graphics is the terminal's image cache: images transmitted via
// the graphics protocol, their on-screen placements, and a byte budget
// enforced through eviction.
//
// The store is single-threaded; the terminal's input loop drives it in
// direct response to decoded commands. It owns image payloads outright but
// never owns scrollback storage: placements hold pins obtained from the
// Screen collaborator and every pin is released exactly once when its
// placement goes away.
package graphics

import (
	"errors"
	"time"
)

var (
	// ErrCapacity reports that an image cannot fit the configured byte
	// budget, even after eviction. The store is left untouched.
	ErrCapacity = errors.New("graphics: insufficient capacity")

	// ErrImageNotFound reports a placement referencing an image id that is
	// not in the store. This is a dispatch bug, not protocol input: the
	// protocol layer must confirm the image exists before placing it.
	ErrImageNotFound = errors.New("graphics: image not found")

	// ErrDisabled reports an operation against a store whose byte budget
	// is zero.
	ErrDisabled = errors.New("graphics: image storage disabled")
)

// Image is a transmitted image owned by the store.
type Image struct {
	// ID uniquely identifies the image. Client-chosen ids are low numbers;
	// ids the store assigns itself count down from the top of the range.
	ID uint32

	// Number is the client's logical grouping number. Multiple images may
	// share one; lookup by number returns the newest.
	Number uint32

	Width  uint32
	Height uint32

	// Data is the raw pixel payload. Its length is what counts against
	// the byte budget.
	Data []byte

	// TransmitTime orders images for eviction and by-number lookup.
	TransmitTime time.Time
}

func (i *Image) size() uint64 { return uint64(len(i.Data)) }

// Point is a cell coordinate: X is the column, Y is the row in
// scrollback-absolute terms so it stays meaningful as content scrolls.
type Point struct {
	X int
	Y int
}

// Pin is an opaque tracked position in scrollback storage, obtained from
// and returned to the Screen. It stays valid across scrollback trimming
// and resizing.
type Pin interface {
	Point() Point
}

// Screen is the narrow view of the scrollback structure the store needs:
// pin tracking plus the grid geometry used to size placements.
type Screen interface {
	// TrackPin registers a tracked position and returns its pin.
	TrackPin(pt Point) (Pin, error)
	// ReleasePin unregisters a pin. Each pin must be released exactly once.
	ReleasePin(p Pin)

	Cols() int
	Rows() int
	// CellSize returns the pixel dimensions of one cell.
	CellSize() (width, height int)
}
