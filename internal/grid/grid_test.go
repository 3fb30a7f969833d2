package grid

import "testing"

func solidTile(w, h int, r, g, b, a byte) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		pix[i*4+0] = r
		pix[i*4+1] = g
		pix[i*4+2] = b
		pix[i*4+3] = a
	}
	return pix
}

func TestTilesAcrossDown(t *testing.T) {
	g, err := New(2560, 2048, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.TilesAcross(); got != 10 {
		t.Fatalf("TilesAcross() = %d, want 10", got)
	}
	if got := g.TilesDown(); got != 8 {
		t.Fatalf("TilesDown() = %d, want 8", got)
	}
}

func TestPaintRegionSingleTile(t *testing.T) {
	g, err := New(256, 256, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	dst := NewSurface(256, 256)
	calls := 0
	err = PaintRegion(g, dst, 0, 0, 256, 256, func(col, row int) ([]byte, error) {
		calls++
		return solidTile(256, 256, 10, 20, 30, 255), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 tile read, got %d", calls)
	}
	if dst.Pix[0] != 10 || dst.Pix[1] != 20 || dst.Pix[2] != 30 || dst.Pix[3] != 255 {
		t.Fatalf("unexpected pixel 0: %v", dst.Pix[0:4])
	}
}

func TestPaintRegionClipsEdgeTiles(t *testing.T) {
	// Level is 300x300 with 256x256 tiles: 2x2 tile grid, edge tiles
	// only partially real.
	g, err := New(300, 300, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	dst := NewSurface(512, 512)
	err = PaintRegion(g, dst, 0, 0, 512, 512, func(col, row int) ([]byte, error) {
		return solidTile(256, 256, 255, 255, 255, 255), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Pixel (300,300) falls in the trailing (invalid) area of the
	// bottom-right tile (tile covers 256..511, but only 256..299 is
	// real) — it must remain transparent (zero), not painted white.
	off := 300*dst.Stride + 300*4
	if dst.Pix[off+3] != 0 {
		t.Fatalf("expected out-of-extent pixel to stay transparent, got alpha %d", dst.Pix[off+3])
	}
	// Pixel (299,299) is inside the real extent of that same tile and
	// must be painted.
	off = 299*dst.Stride + 299*4
	if dst.Pix[off+3] != 255 {
		t.Fatalf("expected in-extent pixel to be painted, got alpha %d", dst.Pix[off+3])
	}
}

func TestPaintRegionPartialRect(t *testing.T) {
	g, err := New(512, 512, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	dst := NewSurface(64, 64)
	var seen [][2]int
	err = PaintRegion(g, dst, 200, 200, 64, 64, func(col, row int) ([]byte, error) {
		seen = append(seen, [2]int{col, row})
		return solidTile(256, 256, 1, 2, 3, 255), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Region [200,264) spans tile columns/rows 0 and 1 (200/256=0,
	// 263/256=1). Expect 2x2 tiles.
	if len(seen) != 4 {
		t.Fatalf("expected 4 intersecting tiles, got %d: %v", len(seen), seen)
	}
}

func TestNewRejectsInvalidDimensions(t *testing.T) {
	if _, err := New(0, 100, 16, 16); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := New(100, 100, 0, 16); err == nil {
		t.Fatal("expected error for zero tile width")
	}
}
