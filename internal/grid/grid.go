// Package grid maps a pixel region onto a set of tile reads and
// composites the results, independent of which backend produces tiles.
package grid

import "fmt"

// Grid is the logical tiling of one pyramid level.
type Grid struct {
	Width, Height     int // true pixel extent of the level
	TileWidth         int
	TileHeight        int
}

// New builds a Grid, or returns an error if the dimensions are invalid.
func New(width, height, tileWidth, tileHeight int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("grid: non-positive level size %dx%d", width, height)
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return Grid{}, fmt.Errorf("grid: non-positive tile size %dx%d", tileWidth, tileHeight)
	}
	return Grid{Width: width, Height: height, TileWidth: tileWidth, TileHeight: tileHeight}, nil
}

// TilesAcross is the number of tile columns, ⌈Width/TileWidth⌉.
func (g Grid) TilesAcross() int {
	return (g.Width + g.TileWidth - 1) / g.TileWidth
}

// TilesDown is the number of tile rows, ⌈Height/TileHeight⌉.
func (g Grid) TilesDown() int {
	return (g.Height + g.TileHeight - 1) / g.TileHeight
}

// TileReader produces the decoded pixels for one tile of a level. It
// returns a row-major ARGB32 buffer of exactly TileWidth*TileHeight*4
// bytes, or an error.
type TileReader func(col, row int) (pix []byte, err error)

// Surface is an ARGB32 output buffer the painter composites tiles onto.
type Surface struct {
	Pix    []byte // row-major ARGB32, len == Stride*Height
	Stride int    // bytes per row
	Width  int
	Height int
}

// NewSurface allocates a zeroed (transparent) surface of the given pixel
// size.
func NewSurface(width, height int) *Surface {
	return &Surface{
		Pix:    make([]byte, width*height*4),
		Stride: width * 4,
		Width:  width,
		Height: height,
	}
}

// PaintRegion reads every tile of g intersecting the rectangle
// [x,x+w)x[y,y+h) — already in g's own pixel coordinates — via read, and
// composites each onto dst starting at (0,0). Tiles (or tile portions)
// outside g's true (Width,Height) are left transparent, matching the
// level's logical clipping.
func PaintRegion(g Grid, dst *Surface, x, y, w, h int, read TileReader) error {
	if w <= 0 || h <= 0 {
		return nil
	}

	col0 := x / g.TileWidth
	row0 := y / g.TileHeight
	col1 := (x + w - 1) / g.TileWidth
	row1 := (y + h - 1) / g.TileHeight

	for row := row0; row <= row1; row++ {
		if row < 0 || row >= g.TilesDown() {
			continue
		}
		for col := col0; col <= col1; col++ {
			if col < 0 || col >= g.TilesAcross() {
				continue
			}
			pix, err := read(col, row)
			if err != nil {
				return fmt.Errorf("grid: reading tile (%d,%d): %w", col, row, err)
			}
			if len(pix) != g.TileWidth*g.TileHeight*4 {
				return fmt.Errorf("grid: tile (%d,%d) returned %d bytes, want %d", col, row, len(pix), g.TileWidth*g.TileHeight*4)
			}
			compositeTile(g, dst, col, row, x, y, pix)
		}
	}
	return nil
}

// compositeTile copies the overlap between tile (col,row) and the
// requested region (rooted at x,y in level coordinates) into dst,
// clipping against both the region bounds and the level's true extent.
func compositeTile(g Grid, dst *Surface, col, row, regionX, regionY int, tilePix []byte) {
	tileOriginX := col * g.TileWidth
	tileOriginY := row * g.TileHeight

	// Clip the tile's own content to the level's real extent: trailing
	// pixels of an edge tile beyond (Width,Height) are not real data.
	validW := g.TileWidth
	if tileOriginX+validW > g.Width {
		validW = g.Width - tileOriginX
	}
	validH := g.TileHeight
	if tileOriginY+validH > g.Height {
		validH = g.Height - tileOriginY
	}
	if validW <= 0 || validH <= 0 {
		return
	}

	for ty := 0; ty < validH; ty++ {
		srcY := tileOriginY + ty
		dstY := srcY - regionY
		if dstY < 0 || dstY >= dst.Height {
			continue
		}
		for tx := 0; tx < validW; tx++ {
			srcX := tileOriginX + tx
			dstX := srcX - regionX
			if dstX < 0 || dstX >= dst.Width {
				continue
			}
			srcOff := (ty*g.TileWidth + tx) * 4
			dstOff := dstY*dst.Stride + dstX*4
			copy(dst.Pix[dstOff:dstOff+4], tilePix[srcOff:srcOff+4])
		}
	}
}
