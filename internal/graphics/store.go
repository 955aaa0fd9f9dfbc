package graphics

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/twistedxcom/termina/internal/logging"
)

var graphicsLog = logging.ForComponent(logging.CompGraphics)

// Store caches transmitted images and their placements for one terminal
// screen, under a byte budget. All mutations are synchronous and atomic:
// a failed insert leaves the store exactly as it was.
type Store struct {
	screen Screen

	limit uint64
	total uint64

	images     map[uint32]*Image
	placements map[PlacementKey]*Placement

	// dirty is set by every mutating call so a renderer can detect a
	// needed redraw without comparing contents.
	dirty bool

	nextImageID     uint32
	nextPlacementID uint32
}

// NewStore creates a store for the given screen with a byte budget of
// limit. A zero limit disables image storage entirely.
func NewStore(screen Screen, limit uint64) *Store {
	return &Store{
		screen:     screen,
		limit:      limit,
		images:     make(map[uint32]*Image),
		placements: make(map[PlacementKey]*Placement),
		// Counting down from the top of the id range keeps internally
		// assigned ids away from the low numbers simple client programs
		// pick for themselves.
		nextImageID: math.MaxUint32,
	}
}

// Enabled reports whether image storage is active.
func (s *Store) Enabled() bool { return s.limit > 0 }

// Dirty reports whether any mutation happened since the last ClearDirty.
func (s *Store) Dirty() bool { return s.dirty }

// ClearDirty resets the dirty flag, typically after a frame was drawn.
func (s *Store) ClearDirty() { s.dirty = false }

// Stats summarizes the store for diagnostics.
type Stats struct {
	Images     int
	Placements int
	Bytes      uint64
	Limit      uint64
}

// Stats returns a snapshot of the store's accounting.
func (s *Store) Stats() Stats {
	return Stats{
		Images:     len(s.images),
		Placements: len(s.placements),
		Bytes:      s.total,
		Limit:      s.limit,
	}
}

// SetLimit updates the byte budget. Lowering it evicts synchronously until
// usage fits. Setting it to zero clears every image and placement, releases
// every pin, and disables the store.
func (s *Store) SetLimit(limit uint64) {
	s.limit = limit
	s.dirty = true

	if limit == 0 {
		for key, pl := range s.placements {
			pl.release(s.screen)
			delete(s.placements, key)
		}
		s.images = make(map[uint32]*Image)
		s.total = 0
		return
	}
	if s.total > limit {
		// Always satisfiable: evicting everything frees all usage.
		s.evict(s.total-limit, 0, false)
	}
}

// NextImageID returns a fresh id for an image transmitted without one.
func (s *Store) NextImageID() uint32 {
	id := s.nextImageID
	s.nextImageID--
	if s.nextImageID == 0 {
		s.nextImageID = math.MaxUint32
	}
	return id
}

// AddImage inserts img, replacing any image with the same id. If the
// payload cannot fit even after evicting every other image, it fails with
// ErrCapacity and the store is unchanged. Replacing an id keeps that
// image's placements alive and adjusts accounting for the old payload.
func (s *Store) AddImage(img *Image) error {
	if s.limit == 0 {
		return ErrDisabled
	}

	size := img.size()
	if size > s.limit {
		return fmt.Errorf("graphics: image %d is %d bytes over a %d byte budget: %w",
			img.ID, size, s.limit, ErrCapacity)
	}

	base := s.total
	if old, ok := s.images[img.ID]; ok {
		base -= old.size()
	}
	if base+size > s.limit {
		if !s.evict(base+size-s.limit, img.ID, true) {
			return fmt.Errorf("graphics: no room for image %d (%d bytes): %w",
				img.ID, size, ErrCapacity)
		}
	}

	if old, ok := s.images[img.ID]; ok {
		s.total -= old.size()
	}
	if img.TransmitTime.IsZero() {
		img.TransmitTime = time.Now()
	}
	s.images[img.ID] = img
	s.total += size
	s.dirty = true
	return nil
}

// AddPlacement binds image imageID at the given placement id. Id 0 means
// auto-assign an internal id; a repeated nonzero external id for the same
// image silently replaces the prior placement at that key. The image must
// already be in the store.
//
// The assigned placement id is returned.
func (s *Store) AddPlacement(imageID, placementID uint32, p *Placement) (uint32, error) {
	if s.limit == 0 {
		return 0, ErrDisabled
	}
	if _, ok := s.images[imageID]; !ok {
		return 0, fmt.Errorf("graphics: placement for image %d: %w", imageID, ErrImageNotFound)
	}

	key := PlacementKey{ImageID: imageID}
	if placementID == 0 {
		s.nextPlacementID++
		key.ID = s.nextPlacementID
	} else {
		key.External = true
		key.ID = placementID
	}

	if old, ok := s.placements[key]; ok {
		old.release(s.screen)
	}
	s.placements[key] = p
	s.dirty = true
	return key.ID, nil
}

// ImageByID returns the image with the given id, or nil.
func (s *Store) ImageByID(id uint32) *Image {
	return s.images[id]
}

// ImageByNumber returns the most recently transmitted image with the given
// logical number, or nil. A linear scan is fine at the tens of live images
// this cache holds. Equal transmit times break toward the higher id.
func (s *Store) ImageByNumber(number uint32) *Image {
	var best *Image
	for _, img := range s.images {
		if img.Number != number {
			continue
		}
		if best == nil || img.TransmitTime.After(best.TransmitTime) ||
			(img.TransmitTime.Equal(best.TransmitTime) && img.ID > best.ID) {
			best = img
		}
	}
	return best
}

// DeleteOp selects a deletion mode.
type DeleteOp int

const (
	// DeleteAll removes every placement; images too when DropImages is set.
	DeleteAll DeleteOp = iota
	// DeleteByID targets an image by id, optionally one placement of it.
	DeleteByID
	// DeleteByNumber targets the newest image with a logical number.
	DeleteByNumber
	// DeleteAtPoint removes placements intersecting a cell.
	DeleteAtPoint
	// DeleteByColumn removes placements spanning a column.
	DeleteByColumn
	// DeleteByRow removes placements spanning a row.
	DeleteByRow
	// DeleteByZ removes placements at an exact z-index.
	DeleteByZ
)

// DeleteSpec describes one deletion. Only the fields relevant to Op are
// consulted.
type DeleteSpec struct {
	Op DeleteOp

	// DropImages makes DeleteAll drop images as well as placements.
	DropImages bool

	// Unused cascades: images left without placements by this deletion are
	// dropped too.
	Unused bool

	ImageID     uint32
	PlacementID uint32
	Number      uint32

	Point   Point
	ZFilter bool
	Z       int32

	Column int
	Row    int
}

// Delete applies spec. The store is marked dirty whether or not anything
// matched, because the protocol requires a redraw either way.
func (s *Store) Delete(spec DeleteSpec) {
	s.dirty = true

	switch spec.Op {
	case DeleteAll:
		for key, pl := range s.placements {
			pl.release(s.screen)
			delete(s.placements, key)
		}
		if spec.DropImages {
			s.images = make(map[uint32]*Image)
			s.total = 0
		}

	case DeleteByID:
		s.deleteByImage(spec.ImageID, spec.PlacementID, spec.Unused)

	case DeleteByNumber:
		if img := s.ImageByNumber(spec.Number); img != nil {
			s.deleteByImage(img.ID, spec.PlacementID, spec.Unused)
		}

	case DeleteAtPoint:
		s.sweep(spec.Unused, func(pl *Placement, r Rect) bool {
			if spec.ZFilter && pl.Z != spec.Z {
				return false
			}
			return r.Contains(spec.Point)
		})

	case DeleteByColumn:
		s.sweep(spec.Unused, func(pl *Placement, r Rect) bool {
			return r.ContainsCol(spec.Column)
		})

	case DeleteByRow:
		s.sweep(spec.Unused, func(pl *Placement, r Rect) bool {
			return r.ContainsRow(spec.Row)
		})

	case DeleteByZ:
		s.sweep(spec.Unused, func(pl *Placement, r Rect) bool {
			return pl.Z == spec.Z
		})
	}
}

// deleteByImage removes one placement (placementID != 0) or every placement
// of the image, then drops the image itself if unused cascading is on.
func (s *Store) deleteByImage(imageID, placementID uint32, unused bool) {
	if placementID != 0 {
		// External ids are what clients name in delete commands, but an
		// internal id is accepted too for completeness.
		key := PlacementKey{ImageID: imageID, External: true, ID: placementID}
		if _, ok := s.placements[key]; !ok {
			key.External = false
		}
		if pl, ok := s.placements[key]; ok {
			pl.release(s.screen)
			delete(s.placements, key)
		}
	} else {
		for key, pl := range s.placements {
			if key.ImageID == imageID {
				pl.release(s.screen)
				delete(s.placements, key)
			}
		}
	}

	if unused && !s.imageInUse(imageID) {
		s.dropImage(imageID)
	}
}

// sweep removes every placement the predicate matches, then cascades to
// images left unused when requested.
func (s *Store) sweep(unused bool, match func(*Placement, Rect) bool) {
	affected := make(map[uint32]struct{})
	for key, pl := range s.placements {
		img := s.images[key.ImageID]
		if img == nil || pl.Pin == nil {
			continue
		}
		if match(pl, pl.rect(img, s.screen)) {
			pl.release(s.screen)
			delete(s.placements, key)
			affected[key.ImageID] = struct{}{}
		}
	}
	if !unused {
		return
	}
	for id := range affected {
		if !s.imageInUse(id) {
			s.dropImage(id)
		}
	}
}

func (s *Store) imageInUse(imageID uint32) bool {
	for key := range s.placements {
		if key.ImageID == imageID {
			return true
		}
	}
	return false
}

// dropImage removes the image, its placements and its accounting.
func (s *Store) dropImage(imageID uint32) {
	img, ok := s.images[imageID]
	if !ok {
		return
	}
	for key, pl := range s.placements {
		if key.ImageID == imageID {
			pl.release(s.screen)
			delete(s.placements, key)
		}
	}
	s.total -= img.size()
	delete(s.images, imageID)
	s.dirty = true
}

// evict frees at least need bytes by removing the least valuable images:
// unused before placed, then oldest transmit first, ties broken by id for
// determinism. The candidate walk is checked for feasibility before
// anything is removed, so a failed eviction has no side effects. With
// hasProtect set, the image with id protect is never considered; the flag
// exists because 0 is a legitimate image id, not a sentinel.
func (s *Store) evict(need uint64, protect uint32, hasProtect bool) bool {
	type candidate struct {
		img  *Image
		used bool
	}
	cands := make([]candidate, 0, len(s.images))
	for id, img := range s.images {
		if hasProtect && id == protect {
			continue
		}
		cands = append(cands, candidate{img: img, used: s.imageInUse(id)})
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.used != b.used {
			return !a.used
		}
		if !a.img.TransmitTime.Equal(b.img.TransmitTime) {
			return a.img.TransmitTime.Before(b.img.TransmitTime)
		}
		return a.img.ID < b.img.ID
	})

	var freed uint64
	take := 0
	for take < len(cands) && freed < need {
		freed += cands[take].img.size()
		take++
	}
	if freed < need {
		return false
	}

	for _, c := range cands[:take] {
		graphicsLog.Debug("evicting image",
			slog.Uint64("id", uint64(c.img.ID)),
			slog.Uint64("bytes", c.img.size()),
			slog.Bool("placed", c.used))
		s.dropImage(c.img.ID)
	}
	return true
}
