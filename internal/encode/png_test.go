package encode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestPNGEncoderRoundTrips(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	enc := &PNGEncoder{}
	data, err := enc.Encode(img)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding encoded PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", decoded.Bounds(), img.Bounds())
	}
	r, g, b, a := decoded.At(1, 1).RGBA()
	if byte(r>>8) != 200 || byte(g>>8) != 100 || byte(b>>8) != 50 || byte(a>>8) != 255 {
		t.Fatalf("pixel (1,1) = %d,%d,%d,%d, want 200,100,50,255", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestPNGEncoderFileExtension(t *testing.T) {
	if (&PNGEncoder{}).FileExtension() != ".png" {
		t.Fatal("expected.png extension")
	}
}
