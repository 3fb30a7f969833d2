package dicomwsi

import "testing"

func TestTilesAcrossDown(t *testing.T) {
	g := levelGeometry{totalWidth: 2560, totalHeight: 2048, tileWidth: 256, tileHeight: 256}
	if g.tilesAcross() != 10 || g.tilesDown() != 8 {
		t.Fatalf("grid = %dx%d, want 10x8", g.tilesAcross(), g.tilesDown())
	}
}

func TestTilesAcrossDownRoundsUp(t *testing.T) {
	g := levelGeometry{totalWidth: 300, totalHeight: 300, tileWidth: 256, tileHeight: 256}
	if g.tilesAcross() != 2 || g.tilesDown() != 2 {
		t.Fatalf("grid = %dx%d, want 2x2", g.tilesAcross(), g.tilesDown())
	}
}

func TestValidateSquareTileRejectsNonSquare(t *testing.T) {
	g := levelGeometry{tileWidth: 256, tileHeight: 128}
	if err := validateSquareTile(g); err == nil {
		t.Fatal("expected error for non-square tile")
	}
	if err := validateSquareTile(levelGeometry{tileWidth: 256, tileHeight: 256}); err != nil {
		t.Fatalf("unexpected error for square tile: %v", err)
	}
}

func TestValidateFrameCount(t *testing.T) {
	g := levelGeometry{totalWidth: 512, totalHeight: 512, tileWidth: 256, tileHeight: 256, frameCount: 4}
	if err := validateFrameCount(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.frameCount = 3
	if err := validateFrameCount(g); err == nil {
		t.Fatal("expected error for short frame count")
	}
}

func TestFrameNumberIsRowMajor(t *testing.T) {
	cases := []struct {
		tilesAcross, col, row, want int
	}{
		{10, 0, 0, 1},
		{10, 9, 0, 10},
		{10, 0, 1, 11},
		{10, 3, 2, 24},
	}
	for _, c := range cases {
		if got := frameNumber(c.tilesAcross, c.col, c.row); got != c.want {
			t.Errorf("frameNumber(%d,%d,%d) = %d, want %d", c.tilesAcross, c.col, c.row, got, c.want)
		}
	}
}

func TestDownsampleForUsesIntegerDivision(t *testing.T) {
	// 1000/300 truncates to 3, not 3.33..., matching set_downsample's
	// integer division.
	if got := downsampleFor(1000, 300); got != 3 {
		t.Fatalf("downsampleFor(1000,300) = %g, want 3", got)
	}
	if got := downsampleFor(1000, 1000); got != 1 {
		t.Fatalf("downsampleFor(1000,1000) = %g, want 1", got)
	}
}
