package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twistedxcom/termina/internal/graphics"
)

func TestTrackPinBounds(t *testing.T) {
	s := New(80, 24, 10, 20)

	pin, err := s.TrackPin(graphics.Point{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, graphics.Point{X: 0, Y: 0}, pin.Point())

	_, err = s.TrackPin(graphics.Point{X: 79, Y: 23})
	require.NoError(t, err)

	for _, pt := range []graphics.Point{
		{X: -1, Y: 0},
		{X: 80, Y: 0},
		{X: 0, Y: -1},
		{X: 0, Y: 24},
	} {
		_, err := s.TrackPin(pt)
		assert.ErrorIs(t, err, ErrOutOfBounds, "point %+v", pt)
	}
	assert.Equal(t, 2, s.PinCount())
}

func TestReleasePinIsIdempotentForBugs(t *testing.T) {
	s := New(80, 24, 10, 20)
	pin, err := s.TrackPin(graphics.Point{X: 1, Y: 1})
	require.NoError(t, err)

	s.ReleasePin(pin)
	assert.Equal(t, 0, s.PinCount())

	// A double release is a caller bug but must not panic or corrupt state.
	s.ReleasePin(pin)
	assert.Equal(t, 0, s.PinCount())
}

func TestPinsAreAbsoluteAcrossScroll(t *testing.T) {
	s := New(80, 24, 10, 20)
	pin, err := s.TrackPin(graphics.Point{X: 4, Y: 10})
	require.NoError(t, err)

	s.Scroll(100)
	assert.Equal(t, graphics.Point{X: 4, Y: 10}, pin.Point())

	// New rows exist at the bottom after scrolling.
	_, err = s.TrackPin(graphics.Point{X: 0, Y: 100})
	assert.NoError(t, err)
}

func TestTrimClampsPins(t *testing.T) {
	s := New(80, 24, 10, 20)
	s.Scroll(100)
	old, err := s.TrackPin(graphics.Point{X: 2, Y: 5})
	require.NoError(t, err)
	young, err := s.TrackPin(graphics.Point{X: 2, Y: 90})
	require.NoError(t, err)

	s.Trim(50)
	assert.Equal(t, graphics.Point{X: 2, Y: 50}, old.Point(), "trimmed-away pin clamps to the new top")
	assert.Equal(t, graphics.Point{X: 2, Y: 90}, young.Point())

	// Rows above the new top are gone.
	_, err = s.TrackPin(graphics.Point{X: 0, Y: 49})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestResizeClampsPinColumns(t *testing.T) {
	s := New(80, 24, 10, 20)
	pin, err := s.TrackPin(graphics.Point{X: 70, Y: 0})
	require.NoError(t, err)

	s.Resize(40, 24)
	assert.Equal(t, 39, pin.Point().X)
	assert.Equal(t, 40, s.Cols())
}

func TestCellSize(t *testing.T) {
	s := New(80, 24, 10, 20)
	w, h := s.CellSize()
	assert.Equal(t, 10, w)
	assert.Equal(t, 20, h)

	s.SetCellSize(8, 16)
	w, h = s.CellSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 16, h)
}
