package graphics

// PlacementKey identifies one placement of one image. Internal (auto
// assigned) and external (client chosen) ids are tagged apart so the two
// id spaces can never collide.
type PlacementKey struct {
	ImageID  uint32
	External bool
	ID       uint32
}

// Placement binds an image to a pinned position in scrollback, with an
// optional crop rectangle and cell span.
type Placement struct {
	// Pin is the tracked top-left position, owned by the Screen. The store
	// releases it when the placement is deleted or its image evicted.
	Pin Pin

	// X and Y offset the image within the top-left cell, in pixels.
	X uint32
	Y uint32

	// Source crop rectangle in image pixels. Zero width/height means
	// the remainder of the image.
	SourceX      uint32
	SourceY      uint32
	SourceWidth  uint32
	SourceHeight uint32

	// Columns and Rows are the explicit cell span. Zero means derive from
	// the source rectangle and the cell size.
	Columns uint32
	Rows    uint32

	// Z is the stacking order.
	Z int32
}

// Rect is a placement's footprint in cells: X/Y is the top-left (Y in
// scrollback-absolute rows), W/H the span.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Contains reports whether the cell at pt is inside the rectangle.
func (r Rect) Contains(pt Point) bool {
	return pt.X >= r.X && pt.X < r.X+r.W && pt.Y >= r.Y && pt.Y < r.Y+r.H
}

// ContainsCol reports whether the rectangle spans the given column.
func (r Rect) ContainsCol(col int) bool {
	return col >= r.X && col < r.X+r.W
}

// ContainsRow reports whether the rectangle spans the given row.
func (r Rect) ContainsRow(row int) bool {
	return row >= r.Y && row < r.Y+r.H
}

// rect computes the cell footprint of the placement for img on scr.
func (p *Placement) rect(img *Image, scr Screen) Rect {
	cols := int(p.Columns)
	rows := int(p.Rows)

	if cols == 0 || rows == 0 {
		srcW := p.SourceWidth
		if srcW == 0 && img.Width > p.SourceX {
			srcW = img.Width - p.SourceX
		}
		srcH := p.SourceHeight
		if srcH == 0 && img.Height > p.SourceY {
			srcH = img.Height - p.SourceY
		}
		cellW, cellH := scr.CellSize()
		if cellW <= 0 {
			cellW = 1
		}
		if cellH <= 0 {
			cellH = 1
		}
		if cols == 0 {
			cols = int((srcW + uint32(cellW) - 1) / uint32(cellW))
		}
		if rows == 0 {
			rows = int((srcH + uint32(cellH) - 1) / uint32(cellH))
		}
	}
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	origin := p.Pin.Point()
	return Rect{X: origin.X, Y: origin.Y, W: cols, H: rows}
}

// release returns the pin to the screen. Safe to call once per placement;
// the nil check keeps teardown paths from double-releasing.
func (p *Placement) release(scr Screen) {
	if p.Pin != nil {
		scr.ReleasePin(p.Pin)
		p.Pin = nil
	}
}
