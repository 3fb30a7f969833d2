package jpegmosaic

import (
	"os"
	"path/filepath"
	"testing"
)

// buildTestJPEG assembles a minimal, syntactically valid JPEG byte
// stream exercising exactly the markers parseHeader and the
// restart-marker scanner care about: SOF0 (32x16, 1x1 sampling, so MCU
// = 8x8), DRI (restart_interval=2), SOS, then four restart-delimited
// segments (tilesAcross=2, tilesDown=2) with a stuffed 0xFF 0x00 byte
// embedded in segment 1 to exercise the stuffing rule, and a final EOI.
// It is not a decodable image — only the header/marker structure is
// exercised by these tests.
func buildTestJPEG(t *testing.T) string {
	t.Helper()
	var buf []byte
	put := func(b ...byte) { buf = append(buf, b...) }

	put(0xFF, 0xD8) // SOI

	// DQT: length 4, 2 dummy payload bytes.
	put(0xFF, 0xDB, 0x00, 0x04, 0x00, 0x00)

	// SOF0: precision=8, height=16, width=32, 3 components 1x1 sampling.
	put(0xFF, 0xC0, 0x00, 0x11,
		0x08,       // precision
		0x00, 0x10, // height = 16
		0x00, 0x20, // width = 32
		0x03,                   // num components
		0x01, 0x11, 0x00, // comp 1: id, h=1 v=1, tq
		0x02, 0x11, 0x01,
		0x03, 0x11, 0x01,
	)

	// DHT: length 5, 3 dummy payload bytes.
	put(0xFF, 0xC4, 0x00, 0x05, 0x00, 0x00, 0x00)

	// DRI: restart_interval = 2.
	put(0xFF, 0xDD, 0x00, 0x04, 0x00, 0x02)

	// SOS: 3 components.
	put(0xFF, 0xDA, 0x00, 0x0C,
		0x03,
		0x01, 0x00,
		0x02, 0x11,
		0x03, 0x11,
		0x00, 0x3F, 0x00,
	)

	// Entropy-coded segments, restart-delimited.
	put(0x11, 0x22, 0x33) // segment 0
	put(0xFF, 0xD0)        // RST0
	put(0xAA, 0xFF, 0x00, 0xBB) // segment 1, with a stuffed FF 00
	put(0xFF, 0xD1)        // RST1
	put(0x55, 0x66)        // segment 2
	put(0xFF, 0xD2)        // RST2
	put(0x77, 0x88, 0x99) // segment 3
	put(0xFF, 0xD9)        // EOI

	path := filepath.Join(t.TempDir(), "test.jpg")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenOneJPEGParsesHeaderAndGrid(t *testing.T) {
	path := buildTestJPEG(t)
	oj, err := openOneJPEG(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer oj.Close()

	if oj.width != 32 || oj.height != 16 {
		t.Fatalf("dims = %dx%d, want 32x16", oj.width, oj.height)
	}
	if oj.tilesAcross != 2 || oj.tilesDown != 2 {
		t.Fatalf("grid = %dx%d, want 2x2", oj.tilesAcross, oj.tilesDown)
	}
	if oj.tileWidth != 16 || oj.tileHeight != 8 {
		t.Fatalf("tile size = %dx%d, want 16x8", oj.tileWidth, oj.tileHeight)
	}
	if len(oj.starts) != 4 {
		t.Fatalf("len(starts) = %d, want 4", len(oj.starts))
	}
	if oj.starts[0] != oj.headerStop {
		t.Fatalf("starts[0] = %d, want headerStop %d", oj.starts[0], oj.headerStop)
	}
	for i := 1; i < 4; i++ {
		if oj.starts[i] != -1 {
			t.Fatalf("starts[%d] = %d, want -1 before any fill", i, oj.starts[i])
		}
	}
}

func TestComputeMCUStartFillsIndexAndSkipsStuffedByte(t *testing.T) {
	path := buildTestJPEG(t)
	oj, err := openOneJPEG(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer oj.Close()

	if err := oj.computeMCUStart(3); err != nil {
		t.Fatal(err)
	}
	for i, want := range oj.starts {
		if want == -1 {
			t.Fatalf("starts[%d] still unfilled after computeMCUStart(3)", i)
		}
	}

	// Invariant: two bytes before every known start must
	// be 0xFF followed by a restart marker byte.
	for i := 1; i < len(oj.starts); i++ {
		off := oj.starts[i]
		var marker [2]byte
		if _, err := oj.f.ReadAt(marker[:], off-2); err != nil {
			t.Fatal(err)
		}
		if marker[0] != 0xFF || marker[1] < 0xD0 || marker[1] > 0xD7 {
			t.Fatalf("starts[%d]-2 = %02X %02X, want FF Dn", i, marker[0], marker[1])
		}
	}
}

func TestComputeMCUStartHintAcceptance(t *testing.T) {
	path := buildTestJPEG(t)
	// Discover the real offsets first, then reopen with those as hints
	// to confirm the hint-acceptance path short-circuits the scan.
	probe, err := openOneJPEG(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := probe.computeMCUStart(3); err != nil {
		t.Fatal(err)
	}
	hints := append([]int64(nil), probe.starts...)
	probe.Close()

	oj, err := openOneJPEG(path, hints)
	if err != nil {
		t.Fatal(err)
	}
	defer oj.Close()

	if err := oj.computeMCUStart(2); err != nil {
		t.Fatal(err)
	}
	if oj.starts[2] != hints[2] {
		t.Fatalf("starts[2] = %d, want hinted %d", oj.starts[2], hints[2])
	}
	if oj.starts[1] != -1 {
		t.Fatalf("starts[1] = %d, want -1: an accepted hint must not trigger a forward scan", oj.starts[1])
	}
}

func TestComputeMCUStartRejectsBadHint(t *testing.T) {
	path := buildTestJPEG(t)
	hints := []int64{-1, -1, 999999, -1} // bogus offset for segment 2
	oj, err := openOneJPEG(path, hints)
	if err != nil {
		t.Fatal(err)
	}
	defer oj.Close()

	if err := oj.computeMCUStart(2); err != nil {
		t.Fatal(err)
	}
	// Must have fallen back to the forward scan and found the real offset,
	// not the bogus hint.
	if oj.starts[2] == 999999 {
		t.Fatal("expected bad hint to be rejected, not accepted")
	}
}
