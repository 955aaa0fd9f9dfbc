package graphics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScreen counts pin traffic so tests can assert every pin is released
// exactly once.
type fakeScreen struct {
	t        *testing.T
	pins     map[*fakePin]struct{}
	released int
}

type fakePin struct{ pt Point }

func (p *fakePin) Point() Point { return p.pt }

func newFakeScreen(t *testing.T) *fakeScreen {
	return &fakeScreen{t: t, pins: make(map[*fakePin]struct{})}
}

func (f *fakeScreen) TrackPin(pt Point) (Pin, error) {
	p := &fakePin{pt: pt}
	f.pins[p] = struct{}{}
	return p, nil
}

func (f *fakeScreen) ReleasePin(p Pin) {
	fp, ok := p.(*fakePin)
	if !ok {
		f.t.Fatalf("released a pin of type %T", p)
	}
	if _, ok := f.pins[fp]; !ok {
		f.t.Fatal("pin released twice or never tracked")
	}
	delete(f.pins, fp)
	f.released++
}

func (f *fakeScreen) Cols() int { return 80 }
func (f *fakeScreen) Rows() int { return 24 }

func (f *fakeScreen) CellSize() (width, height int) { return 10, 20 }

func (f *fakeScreen) live() int { return len(f.pins) }

func img(id uint32, size int, at time.Time) *Image {
	return &Image{ID: id, Data: make([]byte, size), TransmitTime: at}
}

// place pins a point and binds a placement for imageID at placementID.
func place(t *testing.T, s *Store, scr *fakeScreen, imageID, placementID uint32, pt Point) uint32 {
	t.Helper()
	pin, err := scr.TrackPin(pt)
	require.NoError(t, err)
	id, err := s.AddPlacement(imageID, placementID, &Placement{Pin: pin})
	require.NoError(t, err)
	return id
}

// checkAccounting verifies the store's byte counter against its contents.
func checkAccounting(t *testing.T, s *Store) {
	t.Helper()
	var sum uint64
	for _, im := range s.images {
		sum += im.size()
	}
	require.Equal(t, sum, s.total, "byte accounting out of sync")
}

func TestAddImageBudgetBoundary(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)

	// A payload exactly at the budget fits.
	require.NoError(t, s.AddImage(img(1, 100, time.Now())))
	assert.Equal(t, uint64(100), s.Stats().Bytes)

	// One byte over can never fit, and the store is untouched.
	err := s.AddImage(img(2, 101, time.Now()))
	require.ErrorIs(t, err, ErrCapacity)
	assert.NotNil(t, s.ImageByID(1))
	assert.Nil(t, s.ImageByID(2))
	assert.Equal(t, uint64(100), s.Stats().Bytes)
	checkAccounting(t, s)
}

func TestAddImageDisabled(t *testing.T) {
	s := NewStore(newFakeScreen(t), 0)
	err := s.AddImage(img(1, 1, time.Now()))
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, s.Enabled())
}

func TestReplaceImageAdjustsAccounting(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()

	require.NoError(t, s.AddImage(img(1, 80, base)))
	place(t, s, scr, 1, 7, Point{X: 0, Y: 0})

	// The replacement would not fit alongside the old payload; replacing
	// must account for the 80 bytes being freed.
	require.NoError(t, s.AddImage(img(1, 90, base.Add(time.Second))))
	assert.Equal(t, uint64(90), s.Stats().Bytes)

	// Placements of the replaced id survive.
	assert.Equal(t, 1, s.Stats().Placements)
	assert.Equal(t, 1, scr.live())
	checkAccounting(t, s)
}

func TestEvictionPrefersUnusedThenOldest(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()

	require.NoError(t, s.AddImage(img(1, 60, base)))                 // unused
	require.NoError(t, s.AddImage(img(2, 30, base.Add(time.Second)))) // placed
	place(t, s, scr, 2, 1, Point{X: 0, Y: 0})

	// 60 more bytes need 50 freed; the unused image alone covers it and
	// the placed one survives.
	require.NoError(t, s.AddImage(img(3, 60, base.Add(2*time.Second))))
	assert.Nil(t, s.ImageByID(1))
	assert.NotNil(t, s.ImageByID(2))
	assert.NotNil(t, s.ImageByID(3))
	assert.Equal(t, uint64(90), s.Stats().Bytes)
	assert.Equal(t, 1, scr.live())
	checkAccounting(t, s)
}

func TestEvictionFallsBackToPlacedImages(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()

	require.NoError(t, s.AddImage(img(1, 50, base)))
	require.NoError(t, s.AddImage(img(2, 50, base.Add(time.Second))))
	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})
	place(t, s, scr, 2, 1, Point{X: 1, Y: 0})

	// Everything is placed; the oldest goes first and its placement with it.
	require.NoError(t, s.AddImage(img(3, 40, base.Add(2*time.Second))))
	assert.Nil(t, s.ImageByID(1))
	assert.NotNil(t, s.ImageByID(2))
	assert.Equal(t, 1, s.Stats().Placements)
	assert.Equal(t, 1, scr.live(), "evicted image's pin must be released")
	checkAccounting(t, s)
}

func TestEvictionTieBreaksByID(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	at := time.Now()

	require.NoError(t, s.AddImage(img(5, 40, at)))
	require.NoError(t, s.AddImage(img(9, 40, at)))
	require.NoError(t, s.AddImage(img(3, 40, at.Add(time.Second))))
	assert.Nil(t, s.ImageByID(5), "equal transmit times evict the lower id first")
	assert.NotNil(t, s.ImageByID(9))
}

func TestReplacementIsNeverEvictedForItself(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()

	require.NoError(t, s.AddImage(img(1, 70, base)))
	require.NoError(t, s.AddImage(img(2, 30, base.Add(time.Second))))

	// Replacing id 1 with a bigger payload must evict id 2, not id 1.
	require.NoError(t, s.AddImage(img(1, 90, base.Add(2*time.Second))))
	assert.NotNil(t, s.ImageByID(1))
	assert.Nil(t, s.ImageByID(2))
	assert.Equal(t, uint64(90), s.Stats().Bytes)
	checkAccounting(t, s)
}

func TestAddPlacementRequiresImage(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	_, err := s.AddPlacement(42, 0, &Placement{})
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestPlacementIDSpaces(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	require.NoError(t, s.AddImage(img(1, 10, time.Now())))

	// Internal auto-assigned ids and client-chosen external ids live in
	// separate key spaces; id 1 in each must not collide.
	auto := place(t, s, scr, 1, 0, Point{X: 0, Y: 0})
	assert.Equal(t, uint32(1), auto)
	place(t, s, scr, 1, 1, Point{X: 5, Y: 0})
	assert.Equal(t, 2, s.Stats().Placements)
	assert.Equal(t, 2, scr.live())
}

func TestPlacementReplaceReleasesOldPin(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	require.NoError(t, s.AddImage(img(1, 10, time.Now())))

	place(t, s, scr, 1, 7, Point{X: 0, Y: 0})
	place(t, s, scr, 1, 7, Point{X: 3, Y: 3})
	assert.Equal(t, 1, s.Stats().Placements)
	assert.Equal(t, 1, scr.live())
	assert.Equal(t, 1, scr.released)
}

func TestImageByNumber(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	base := time.Now()

	a := img(1, 10, base)
	a.Number = 9
	b := img(2, 10, base.Add(time.Second))
	b.Number = 9
	c := img(3, 10, base)
	c.Number = 5
	require.NoError(t, s.AddImage(a))
	require.NoError(t, s.AddImage(b))
	require.NoError(t, s.AddImage(c))

	assert.Equal(t, uint32(2), s.ImageByNumber(9).ID, "newest wins")
	assert.Equal(t, uint32(3), s.ImageByNumber(5).ID)
	assert.Nil(t, s.ImageByNumber(4))

	// Equal transmit times break toward the higher id.
	d := img(7, 10, base.Add(time.Second))
	d.Number = 9
	require.NoError(t, s.AddImage(d))
	assert.Equal(t, uint32(7), s.ImageByNumber(9).ID)
}

func TestNextImageIDCountsDown(t *testing.T) {
	s := NewStore(newFakeScreen(t), 100)
	first := s.NextImageID()
	second := s.NextImageID()
	assert.Equal(t, uint32(0xffffffff), first)
	assert.Equal(t, first-1, second)
}

func TestDeleteAll(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	require.NoError(t, s.AddImage(img(1, 10, time.Now())))
	require.NoError(t, s.AddImage(img(2, 10, time.Now())))
	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})
	place(t, s, scr, 2, 1, Point{X: 1, Y: 0})

	s.Delete(DeleteSpec{Op: DeleteAll})
	assert.Equal(t, 0, s.Stats().Placements)
	assert.Equal(t, 2, s.Stats().Images, "placements only unless DropImages")
	assert.Equal(t, 0, scr.live())

	s.Delete(DeleteSpec{Op: DeleteAll, DropImages: true})
	assert.Equal(t, 0, s.Stats().Images)
	assert.Equal(t, uint64(0), s.Stats().Bytes)
	checkAccounting(t, s)
}

func TestDeleteByIDSinglePlacement(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	require.NoError(t, s.AddImage(img(1, 10, time.Now())))
	place(t, s, scr, 1, 7, Point{X: 0, Y: 0})
	place(t, s, scr, 1, 8, Point{X: 1, Y: 0})

	s.Delete(DeleteSpec{Op: DeleteByID, ImageID: 1, PlacementID: 7})
	assert.Equal(t, 1, s.Stats().Placements)
	assert.NotNil(t, s.ImageByID(1))

	// Unused cascade drops the image once its last placement goes.
	s.Delete(DeleteSpec{Op: DeleteByID, ImageID: 1, PlacementID: 8, Unused: true})
	assert.Equal(t, 0, s.Stats().Placements)
	assert.Nil(t, s.ImageByID(1))
	assert.Equal(t, 0, scr.live())
	checkAccounting(t, s)
}

func TestDeleteByNumber(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	base := time.Now()

	a := img(1, 10, base)
	a.Number = 4
	b := img(2, 10, base.Add(time.Second))
	b.Number = 4
	require.NoError(t, s.AddImage(a))
	require.NoError(t, s.AddImage(b))
	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})
	place(t, s, scr, 2, 1, Point{X: 1, Y: 0})

	// Targets the newest image with the number; the older one is untouched.
	s.Delete(DeleteSpec{Op: DeleteByNumber, Number: 4, Unused: true})
	assert.Nil(t, s.ImageByID(2))
	assert.NotNil(t, s.ImageByID(1))
	assert.Equal(t, 1, s.Stats().Placements)
}

func TestDeleteAtPoint(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	im := img(1, 10, time.Now())
	im.Width = 30 // 3 cols at a 10px cell
	im.Height = 40 // 2 rows at a 20px cell
	require.NoError(t, s.AddImage(im))

	pin, err := scr.TrackPin(Point{X: 5, Y: 10})
	require.NoError(t, err)
	_, err = s.AddPlacement(1, 1, &Placement{Pin: pin})
	require.NoError(t, err)

	// A cell outside the 3x2 footprint matches nothing.
	s.Delete(DeleteSpec{Op: DeleteAtPoint, Point: Point{X: 8, Y: 10}})
	assert.Equal(t, 1, s.Stats().Placements)

	// Inside the footprint it goes, with a z filter honored.
	s.Delete(DeleteSpec{Op: DeleteAtPoint, Point: Point{X: 6, Y: 11}, ZFilter: true, Z: 5})
	assert.Equal(t, 1, s.Stats().Placements, "wrong z must not match")
	s.Delete(DeleteSpec{Op: DeleteAtPoint, Point: Point{X: 6, Y: 11}})
	assert.Equal(t, 0, s.Stats().Placements)
	assert.Equal(t, 0, scr.live())
}

func TestDeleteByColumnRowZ(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	im := img(1, 10, time.Now())
	im.Width = 10
	im.Height = 20
	require.NoError(t, s.AddImage(im))

	pinA, _ := scr.TrackPin(Point{X: 2, Y: 0})
	_, err := s.AddPlacement(1, 1, &Placement{Pin: pinA, Z: 3})
	require.NoError(t, err)
	pinB, _ := scr.TrackPin(Point{X: 9, Y: 4})
	_, err = s.AddPlacement(1, 2, &Placement{Pin: pinB, Z: -1})
	require.NoError(t, err)

	s.Delete(DeleteSpec{Op: DeleteByColumn, Column: 2})
	assert.Equal(t, 1, s.Stats().Placements)

	s.Delete(DeleteSpec{Op: DeleteByRow, Row: 3})
	assert.Equal(t, 1, s.Stats().Placements, "row 3 spans nothing")

	s.Delete(DeleteSpec{Op: DeleteByZ, Z: -1})
	assert.Equal(t, 0, s.Stats().Placements)
	assert.Equal(t, 0, scr.live())
}

func TestDeleteMarksDirtyEvenWithoutMatch(t *testing.T) {
	s := NewStore(newFakeScreen(t), 1000)
	s.ClearDirty()
	s.Delete(DeleteSpec{Op: DeleteByID, ImageID: 99})
	assert.True(t, s.Dirty())
}

func TestDirtyFlag(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	assert.False(t, s.Dirty())

	require.NoError(t, s.AddImage(img(1, 10, time.Now())))
	assert.True(t, s.Dirty())
	s.ClearDirty()

	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})
	assert.True(t, s.Dirty())
	s.ClearDirty()

	s.SetLimit(500)
	assert.True(t, s.Dirty())
}

func TestSetLimitZeroClearsAndDisables(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 1000)
	require.NoError(t, s.AddImage(img(1, 10, time.Now())))
	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})

	s.SetLimit(0)
	assert.False(t, s.Enabled())
	assert.Equal(t, 0, s.Stats().Images)
	assert.Equal(t, 0, s.Stats().Placements)
	assert.Equal(t, uint64(0), s.Stats().Bytes)
	assert.Equal(t, 0, scr.live(), "disabling must release every pin")

	err := s.AddImage(img(2, 10, time.Now()))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSetLimitLowerEvicts(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()
	require.NoError(t, s.AddImage(img(1, 50, base)))
	require.NoError(t, s.AddImage(img(2, 50, base.Add(time.Second))))

	s.SetLimit(60)
	assert.Nil(t, s.ImageByID(1), "oldest goes first")
	assert.NotNil(t, s.ImageByID(2))
	assert.LessOrEqual(t, s.Stats().Bytes, uint64(60))
	checkAccounting(t, s)
}

func TestSetLimitEvictsImageWithIDZero(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)

	// 0 is a valid client-chosen id and must be an eviction candidate like
	// any other when the budget shrinks.
	require.NoError(t, s.AddImage(img(0, 80, time.Now())))

	s.SetLimit(40)
	assert.Nil(t, s.ImageByID(0))
	assert.LessOrEqual(t, s.Stats().Bytes, uint64(40))
	checkAccounting(t, s)
}

func TestNoDanglingPlacements(t *testing.T) {
	scr := newFakeScreen(t)
	s := NewStore(scr, 100)
	base := time.Now()

	require.NoError(t, s.AddImage(img(1, 60, base)))
	place(t, s, scr, 1, 1, Point{X: 0, Y: 0})

	// Force eviction of the placed image; its placement must not linger.
	require.NoError(t, s.AddImage(img(2, 60, base.Add(time.Second))))
	require.Nil(t, s.ImageByID(1))
	for key := range s.placements {
		if _, ok := s.images[key.ImageID]; !ok {
			t.Fatalf("placement %+v references an evicted image", key)
		}
	}
	assert.Equal(t, 0, scr.live())
}
