package jpegmosaic

import (
	"image"
	"log"
)

// argbFromImage rasterizes img into a row-major ARGB32 buffer of exactly
// w*h*4 bytes, matching the "decoder cunning" output contract: alpha
// is always 0xFF (JPEG carries no alpha), R/G/B are converted from img's
// native color model. img may be larger than w x h if the patched SOF0
// dimensions didn't fully suppress extra decoded rows/columns; the
// result is always cropped/padded to exactly w x h.
func argbFromImage(img image.Image, w, h int) []byte {
	out := make([]byte, w*h*4)
	b := img.Bounds()
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y
		for x := 0; x < w; x++ {
			sx := b.Min.X + x
			off := (y*w + x) * 4
			if sx >= b.Max.X || sy >= b.Max.Y {
				out[off+3] = 0xFF // still opaque, just black: no source pixel
				continue
			}
			r, g, bl, _ := img.At(sx, sy).RGBA()
			out[off+0] = byte(r >> 8)
			out[off+1] = byte(g >> 8)
			out[off+2] = byte(bl >> 8)
			out[off+3] = 0xFF
		}
	}
	return out
}

// boxDownsample averages factor x factor blocks of an ARGB32 buffer,
// implementing the scale_denom>1 cases.
func boxDownsample(src []byte, w, h, factor int) (dst []byte, dw, dh int) {
	if factor <= 1 {
		return src, w, h
	}
	dw, dh = w/factor, h/factor
	dst = make([]byte, dw*dh*4)
	n := factor * factor
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var rs, gs, bs, as int
			for dy := 0; dy < factor; dy++ {
				srcRow := (y*factor + dy) * w
				for dx := 0; dx < factor; dx++ {
					o := (srcRow + x*factor + dx) * 4
					rs += int(src[o+0])
					gs += int(src[o+1])
					bs += int(src[o+2])
					as += int(src[o+3])
				}
			}
			o2 := (y*dw + x) * 4
			dst[o2+0] = byte(rs / n)
			dst[o2+1] = byte(gs / n)
			dst[o2+2] = byte(bs / n)
			dst[o2+3] = byte(as / n)
		}
	}
	return dst, dw, dh
}

func logWarnHintRejected(path string, target int) {
	log.Printf("jpegmosaic: %s: restart marker hint rejected for segment %d, falling back to forward scan", path, target)
}
