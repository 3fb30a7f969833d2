// Package encode writes decoded region surfaces out to standard image
// formats, for slidedump and any future export path.
package encode

import (
	"bytes"
	"image"
	"image/png"
)

// PNGEncoder encodes a region as PNG.
type PNGEncoder struct{}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) FileExtension() string { return ".png" }
