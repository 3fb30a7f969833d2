package dicomwsi

import "fmt"

// levelGeometry is the pure geometric description of one DICOM level
// instance, extracted from its dataset by readGeometry (dicomfile.go) so
// the sizing/grid math below can be exercised without a parsed dataset.
type levelGeometry struct {
	totalWidth, totalHeight int64
	tileWidth, tileHeight   int
	frameCount              int
}

// ceilDiv mirrors make_grid's ceiling division.
func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// validateSquareTile enforces the source's square-tile requirement
// (level_new): a level whose per-frame tile is not square is rejected as
// malformed rather than silently stretched.
func validateSquareTile(g levelGeometry) error {
	if g.tileWidth != g.tileHeight {
		return fmt.Errorf("tile is %dx%d, must be square", g.tileWidth, g.tileHeight)
	}
	return nil
}

// tilesAcross and tilesDown give the frame grid dimensions implied by a
// level's total pixel matrix and per-frame tile size.
func (g levelGeometry) tilesAcross() int { return int(ceilDiv(g.totalWidth, int64(g.tileWidth))) }
func (g levelGeometry) tilesDown() int   { return int(ceilDiv(g.totalHeight, int64(g.tileHeight))) }

// validateFrameCount checks that the level instance carries at least as
// many frames as its tile grid requires (level_new rejects a BOT/frame
// count mismatch as malformed rather than reading past the end).
func validateFrameCount(g levelGeometry) error {
	want := g.tilesAcross() * g.tilesDown()
	if g.frameCount < want {
		return fmt.Errorf("have %d frames, grid needs %d (%dx%d tiles)", g.frameCount, want, g.tilesAcross(), g.tilesDown())
	}
	return nil
}

// frameNumber computes the 1-based DICOM frame number for tile
// (col,row) in a level with the given tile-grid width: frame_number =
// 1 + col + tiles_across*row, the row-major Basic
// Offset Table ordering. Callers indexing the 0-based GetFrame API
// subtract 1.
func frameNumber(tilesAcross, col, row int) int {
	return 1 + col + tilesAcross*row
}

// downsampleFor returns level l's downsample factor relative to the
// widest (level 0) width, via set_downsample's integer division:
// largest_width/level_width, not a floating ratio.
func downsampleFor(level0Width, levelWidth int64) float64 {
	if levelWidth == 0 {
		return 0
	}
	return float64(level0Width / levelWidth)
}
