package dicomwsi

import (
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
)

// frameToARGB converts one decoded DICOM frame to ARGB32, the pixel
// format every backend produces for grid.Surface. WSI level
// frames are RGB (PhotometricInterpretation RGB or YBR_FULL_422,
// already converted to RGB by the codec's decode step); associated
// images follow the same convention.
func frameToARGB(frame []byte, width, height, samplesPerPixel int) []byte {
	out := make([]byte, width*height*4)
	n := width * height
	switch samplesPerPixel {
	case 1:
		for i := 0; i < n && i < len(frame); i++ {
			v := frame[i]
			o := i * 4
			out[o], out[o+1], out[o+2], out[o+3] = v, v, v, 255
		}
	default: // 3: RGB
		for i := 0; i < n; i++ {
			si := i * 3
			if si+2 >= len(frame) {
				break
			}
			o := i * 4
			out[o] = frame[si]
			out[o+1] = frame[si+1]
			out[o+2] = frame[si+2]
			out[o+3] = 255
		}
	}
	return out
}

// samplesPerPixelOf reads SamplesPerPixel, defaulting to 3 (RGB) since
// that is universally what WSI level/label/overview instances carry.
func samplesPerPixelOf(f *dicomFile) int {
	if f.ds == nil {
		return 3
	}
	v := int(f.ds.TryGetUInt16(tag.SamplesPerPixel, 0))
	if v == 0 {
		return 3
	}
	return v
}
