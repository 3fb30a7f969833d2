package jpegmosaic

import (
	"fmt"
	"sort"

	"github.com/openslide-go/slidecore/internal/slide"
)

// ManifestEntry describes one source JPEG file's place in the mosaic.
// Entries must be supplied in zxy-successor order.
type ManifestEntry struct {
	Path  string
	Z, X, Y int64
	// Hints, if non-nil, gives one restart-segment-offset guess per
	// tile in this file.
	Hints []int64
}

// scaleDenoms are the four downsampling factors the JPEG decoder
// natively supports.
var scaleDenoms = [...]int{1, 2, 4, 8}

// mosaicLevel is one (layer, scale_denom) pair sharing the layer's
// OneJpeg grid.
type mosaicLevel struct {
	jpegs                  []*OneJpeg // row-major, jpegsAcross*jpegsDown
	jpegsAcross, jpegsDown int
	pixelW, pixelH         int64 // full composite size at scale_denom==1
	scaleDenom             int
	image00W, image00H     int
	noScaleDenomDownsample float64
}

func (l *mosaicLevel) width() int64  { return l.pixelW / int64(l.scaleDenom) }
func (l *mosaicLevel) height() int64 { return l.pixelH / int64(l.scaleDenom) }
func (l *mosaicLevel) downsample() float64 {
	return l.noScaleDenomDownsample * float64(l.scaleDenom)
}
func (l *mosaicLevel) tileWidth() int  { return l.jpegs[0].tileWidth / l.scaleDenom }
func (l *mosaicLevel) tileHeight() int { return l.jpegs[0].tileHeight / l.scaleDenom }

// isZXYSuccessor reports whether (z,x,y) legally follows (pz,px,py) in
// the manifest's required traversal order.
func isZXYSuccessor(pz, px, py, z, x, y int64) bool {
	if z == pz+1 {
		return x == 0 && y == 0
	}
	if z != pz {
		return false
	}
	if y == py+1 {
		return x == 0
	}
	if y != py {
		return false
	}
	return x == px+1
}

// assembleLayers opens every manifest entry's file and groups them into
// mosaic levels, one width-sorted list per level. Returns
// the ordered level list (widest first) and every opened OneJpeg (for
// lifetime management and the background sweep).
func assembleLayers(manifest []ManifestEntry) (levels []*mosaicLevel, allJpegs []*OneJpeg, err error) {
	if len(manifest) == 0 {
		return nil, nil, slide.Wrap(slide.BadFile, "assembleLayers", fmt.Errorf("empty manifest"))
	}

	widthToLevels := make(map[int64][]*mosaicLevel)

	prevZ, prevX, prevY := int64(-1), int64(-1), int64(-1)
	var groupJpegs []*OneJpeg
	var lPW, lPH int64
	var img00W, img00H int
	var layer0W int64

	flush := func(fr ManifestEntry) error {
		jpegsAcross := int(fr.X + 1)
		jpegsDown := int(fr.Y + 1)
		if len(groupJpegs) != jpegsAcross*jpegsDown {
			return fmt.Errorf("z=%d: expected %d tiles (%dx%d), got %d", fr.Z, jpegsAcross*jpegsDown, jpegsAcross, jpegsDown, len(groupJpegs))
		}
		if fr.Z == 0 {
			layer0W = lPW
		}
		for _, scale := range scaleDenoms {
			l := &mosaicLevel{
				jpegs:                  groupJpegs,
				jpegsAcross:            jpegsAcross,
				jpegsDown:              jpegsDown,
				pixelW:                 lPW,
				pixelH:                 lPH,
				scaleDenom:             scale,
				image00W:               img00W,
				image00H:               img00H,
				noScaleDenomDownsample: float64(layer0W) / float64(lPW),
			}
			key := lPW / int64(scale)
			widthToLevels[key] = append(widthToLevels[key], l)
		}
		return nil
	}

	for i, fr := range manifest {
		if !isZXYSuccessor(prevZ, prevX, prevY, fr.Z, fr.X, fr.Y) {
			for _, oj := range allJpegs {
				oj.Close()
			}
			panic(fmt.Sprintf("jpegmosaic: manifest entry %d (z=%d,x=%d,y=%d) is not a zxy-successor of (%d,%d,%d)", i, fr.Z, fr.X, fr.Y, prevZ, prevX, prevY))
		}

		oj, openErr := openOneJPEG(fr.Path, fr.Hints)
		if openErr != nil {
			for _, c := range allJpegs {
				c.Close()
			}
			return nil, nil, openErr
		}
		allJpegs = append(allJpegs, oj)

		if fr.X == 0 && fr.Y == 0 {
			img00W, img00H = oj.width, oj.height
		}
		if fr.Y == 0 {
			lPW += int64(oj.width)
		}
		if fr.X == 0 {
			lPH += int64(oj.height)
		}
		groupJpegs = append(groupJpegs, oj)

		last := i == len(manifest)-1
		if last || manifest[i+1].Z != fr.Z {
			if err := flush(fr); err != nil {
				for _, c := range allJpegs {
					c.Close()
				}
				return nil, nil, slide.Wrap(slide.BadFile, "assembleLayers", err)
			}
			groupJpegs = nil
			lPW, lPH = 0, 0
			img00W, img00H = 0, 0
		}

		prevZ, prevX, prevY = fr.Z, fr.X, fr.Y
	}

	keys := make([]int64, 0, len(widthToLevels))
	for k := range widthToLevels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	for _, k := range keys {
		levels = append(levels, widthToLevels[k]...)
	}
	// Levels sharing the same width key (collisions across z-groups) are
	// appended in manifest order; within a single z-group's four
	// scale_denom variants, widths are always distinct by construction.

	return levels, allJpegs, nil
}
