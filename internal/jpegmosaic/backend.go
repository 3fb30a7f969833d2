package jpegmosaic

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/openslide-go/slidecore/internal/cache"
	"github.com/openslide-go/slidecore/internal/grid"
	"github.com/openslide-go/slidecore/internal/slide"
)

// Backend implements slide.Backend over a set of JPEG mosaic levels.
// A single mutex serializes the entire region-read path and
// the background restart-marker sweep, matching the source's coarse
// locking: JPEG file handles are shared across all four scale_denom
// variants of a layer, so positional reads must not interleave.
type Backend struct {
	mu     sync.Mutex // restart-marker mutex
	levels []*mosaicLevel
	grids  []grid.Grid
	jpegs  []*OneJpeg

	cache *cache.Cache

	sweepDone chan struct{}
	terminate atomic.Bool
}

// Options configures Open.
type Options struct {
	CacheBudgetBytes int64
}

// Open builds a JPEG mosaic slide from manifest, which must list every
// source file in zxy-successor order. Opening spawns the
// background restart-marker sweep goroutine before returning.
func Open(manifest []ManifestEntry, opts Options) (*slide.Slide, error) {
	levels, jpegs, err := assembleLayers(manifest)
	if err != nil {
		return nil, err
	}

	grids := make([]grid.Grid, len(levels))
	for i, l := range levels {
		g, err := grid.New(int(l.width()), int(l.height()), l.tileWidth(), l.tileHeight())
		if err != nil {
			for _, oj := range jpegs {
				oj.Close()
			}
			return nil, slide.Wrap(slide.BadFile, "jpegmosaic.Open", fmt.Errorf("level %d: %w", i, err))
		}
		grids[i] = g
	}

	b := &Backend{
		levels: levels,
		grids:  grids,
		jpegs:  jpegs,
		cache:  cache.New(opts.CacheBudgetBytes),
	}
	b.sweepDone = make(chan struct{})
	go b.sweep()

	return slide.Open(b, b.cache), nil
}

// sweep is the single background worker that densifies every OneJpeg's
// restart-marker index, one entry at a time, yielding the mutex between
// entries so foreground reads are never starved for long.
func (b *Backend) sweep() {
	defer close(b.sweepDone)
	for _, oj := range b.jpegs {
		for target := 1; target < len(oj.starts); target++ {
			if b.terminate.Load() {
				return
			}
			b.mu.Lock()
			err := oj.computeMCUStart(target)
			b.mu.Unlock()
			if err != nil {
				log.Printf("jpegmosaic: background sweep: %v", err)
				break // treat as end-of-scan for this file, not fatal
			}
		}
	}
}

func (b *Backend) levelIndex(levelIndex int) (*mosaicLevel, grid.Grid, bool) {
	if levelIndex < 0 || levelIndex >= len(b.levels) {
		return nil, grid.Grid{}, false
	}
	return b.levels[levelIndex], b.grids[levelIndex], true
}

// PaintRegion implements slide.Backend.
func (b *Backend) PaintRegion(dst *slide.Surface, x, y int64, levelIndex int, w, h int) error {
	l, g, ok := b.levelIndex(levelIndex)
	if !ok {
		return slide.Wrap(slide.OutOfRange, "PaintRegion", fmt.Errorf("level %d out of range (have %d)", levelIndex, len(b.levels)))
	}

	// Clip the end coordinates to one short of this level's pixel extent
	// (pw-1, ph-1) before reading any tiles, so the level's last column
	// and last row are never painted.
	pw, ph := l.width(), l.height()
	endX, endY := x+int64(w), y+int64(h)
	if endX >= pw {
		endX = pw - 1
	}
	if endY >= ph {
		endY = ph - 1
	}
	clippedW := int(endX - x)
	clippedH := int(endY - y)
	if clippedW <= 0 || clippedH <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return grid.PaintRegion(g, dst, int(x), int(y), clippedW, clippedH, func(col, row int) ([]byte, error) {
		return b.readTile(l, levelIndex, col, row)
	})
}

// readTile services one grid tile request for level l, consulting the
// shared cache first.
func (b *Backend) readTile(l *mosaicLevel, levelIndex, col, row int) ([]byte, error) {
	key := cache.Key{LevelID: uint64(levelIndex), Col: col, Row: row}
	if ref, ok := b.cache.Get(key); ok {
		defer ref.Release()
		return ref.Tile().Pix, nil
	}

	srcX := int64(col * l.tileWidth())
	srcY := int64(row * l.tileHeight())
	pix, tw, th, err := b.readFromLayer(l, srcX, srcY)
	if err != nil {
		return nil, err
	}

	ref := b.cache.Put(key, &cache.Tile{Pix: pix, Width: tw, Height: th})
	defer ref.Release()
	return pix, nil
}

// readFromLayer implements tilereader_read: locate the source
// file for level-space coordinates (srcX,srcY) and dispatch to its
// native-resolution tile decode, then box-downsample for scale_denom>1.
func (b *Backend) readFromLayer(l *mosaicLevel, srcX, srcY int64) ([]byte, int, int, error) {
	fullX := srcX * int64(l.scaleDenom)
	fullY := srcY * int64(l.scaleDenom)

	fileY := int(fullY / int64(l.image00H))
	fileX := int(fullX / int64(l.image00W))
	if fileX < 0 || fileX >= l.jpegsAcross || fileY < 0 || fileY >= l.jpegsDown {
		return nil, 0, 0, slide.Wrap(slide.OutOfRange, "readFromLayer", fmt.Errorf("pixel (%d,%d) maps outside %dx%d file grid", fullX, fullY, l.jpegsAcross, l.jpegsDown))
	}

	withinX := fullX - int64(fileX)*int64(l.image00W)
	withinY := fullY - int64(fileY)*int64(l.image00H)

	oj := l.jpegs[fileY*l.jpegsAcross+fileX]
	nativeCol := int(withinX) / oj.tileWidth
	nativeRow := int(withinY) / oj.tileHeight

	pix, err := oj.readNativeTile(nativeCol, nativeRow)
	if err != nil {
		return nil, 0, 0, err
	}

	pix, tw, th := boxDownsample(pix, oj.tileWidth, oj.tileHeight, l.scaleDenom)
	return pix, tw, th, nil
}

// Dimensions implements slide.Backend.
func (b *Backend) Dimensions(levelIndex int) (int64, int64) {
	l, _, ok := b.levelIndex(levelIndex)
	if !ok {
		return 0, 0
	}
	return l.width(), l.height()
}

// LevelCount implements slide.Backend.
func (b *Backend) LevelCount() int { return len(b.levels) }

// Downsample implements slide.Backend.
func (b *Backend) Downsample(levelIndex int) float64 {
	l, _, ok := b.levelIndex(levelIndex)
	if !ok {
		return 0
	}
	return l.downsample()
}

// Comment implements slide.Backend: the first registered file's COM
// marker text, matching get_comment's "data->all_jpegs[0].comment".
func (b *Backend) Comment() string {
	if len(b.jpegs) == 0 {
		return ""
	}
	return b.jpegs[0].comment
}

// AssociatedImages implements slide.Backend. The JPEG mosaic backend
// carries no associated images; those are a DICOM-directory concept.
func (b *Backend) AssociatedImages() map[string]*slide.AssociatedImage { return nil }

// Properties implements slide.Backend.
func (b *Backend) Properties() map[string]string {
	props := map[string]string{
		"openslide.vendor":      "jpeg-mosaic",
		"openslide.level-count": fmt.Sprintf("%d", len(b.levels)),
	}
	for i, l := range b.levels {
		prefix := fmt.Sprintf("openslide.level[%d].", i)
		props[prefix+"width"] = fmt.Sprintf("%d", l.width())
		props[prefix+"height"] = fmt.Sprintf("%d", l.height())
		props[prefix+"downsample"] = fmt.Sprintf("%g", l.downsample())
		props[prefix+"tile-width"] = fmt.Sprintf("%d", l.tileWidth())
		props[prefix+"tile-height"] = fmt.Sprintf("%d", l.tileHeight())
	}
	return props
}

// Close implements slide.Backend: signals the sweep goroutine to stop,
// joins it, then closes every file handle.
func (b *Backend) Close() error {
	b.terminate.Store(true)
	<-b.sweepDone

	var firstErr error
	for _, oj := range b.jpegs {
		if err := oj.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
