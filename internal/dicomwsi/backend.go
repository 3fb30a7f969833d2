package dicomwsi

import (
	"fmt"

	"github.com/openslide-go/slidecore/internal/cache"
	"github.com/openslide-go/slidecore/internal/grid"
	"github.com/openslide-go/slidecore/internal/slide"
)

// Options configures Open.
type Options struct {
	CacheBudgetBytes int64
}

// Backend implements slide.Backend over one series of a DICOM VL Whole
// Slide Microscopy Image directory. Unlike the JPEG mosaic
// backend, there is no shared file handle or background index to
// serialize: each level's dicomFile carries its own mutex, so
// concurrent reads against different levels proceed independently.
type Backend struct {
	levels []*pyramidLevel
	grids  []grid.Grid

	associated map[string]*slide.AssociatedImage
	allFiles   []*dicomFile

	cache *cache.Cache
}

// Open assembles a slide from the DICOM directory dir, pinned to the
// series that seriesFile belongs to.
func Open(dir, seriesFile string, opts Options) (*slide.Slide, error) {
	p, err := openDicomDirectory(dir, seriesFile)
	if err != nil {
		return nil, err
	}

	grids := make([]grid.Grid, len(p.levels))
	for i, lvl := range p.levels {
		g := lvl.file.Geometry
		gr, err := grid.New(int(g.totalWidth), int(g.totalHeight), g.tileWidth, g.tileHeight)
		if err != nil {
			closeAll(p.allFiles)
			return nil, slide.Wrap(slide.BadFile, "dicomwsi.Open", fmt.Errorf("level %d: %w", i, err))
		}
		grids[i] = gr
	}

	b := &Backend{
		levels:     p.levels,
		grids:      grids,
		allFiles:   p.allFiles,
		cache:      cache.New(opts.CacheBudgetBytes),
		associated: make(map[string]*slide.AssociatedImage, len(p.associated)),
	}
	for name, f := range p.associated {
		img, err := decodeAssociatedImage(f)
		if err != nil {
			// A damaged label/macro image is non-fatal: the rest of
			// the slide is still usable without it.
			continue
		}
		b.associated[name] = img
	}

	return slide.Open(b, b.cache), nil
}

// decodeAssociatedImage eagerly decodes a single-frame label/overview
// instance in full, since associated images are read once, not tiled.
func decodeAssociatedImage(f *dicomFile) (*slide.AssociatedImage, error) {
	frame, err := f.getFrame(0)
	if err != nil {
		return nil, err
	}
	w, h := f.Geometry.tileWidth, f.Geometry.tileHeight
	return &slide.AssociatedImage{
		Width:  w,
		Height: h,
		Pix:    frameToARGB(frame, w, h, samplesPerPixelOf(f)),
	}, nil
}

func (b *Backend) levelAt(levelIndex int) (*pyramidLevel, grid.Grid, bool) {
	if levelIndex < 0 || levelIndex >= len(b.levels) {
		return nil, grid.Grid{}, false
	}
	return b.levels[levelIndex], b.grids[levelIndex], true
}

// PaintRegion implements slide.Backend.
func (b *Backend) PaintRegion(dst *slide.Surface, x, y int64, levelIndex int, w, h int) error {
	lvl, g, ok := b.levelAt(levelIndex)
	if !ok {
		return slide.Wrap(slide.OutOfRange, "PaintRegion", fmt.Errorf("level %d out of range (have %d)", levelIndex, len(b.levels)))
	}

	return grid.PaintRegion(g, dst, int(x), int(y), w, h, func(col, row int) ([]byte, error) {
		return b.readTile(lvl, levelIndex, col, row)
	})
}

// readTile services one grid tile request, consulting the shared cache
// before decoding a fresh frame.
func (b *Backend) readTile(lvl *pyramidLevel, levelIndex, col, row int) ([]byte, error) {
	key := cache.Key{LevelID: uint64(levelIndex), Col: col, Row: row}
	if ref, ok := b.cache.Get(key); ok {
		defer ref.Release()
		return ref.Tile().Pix, nil
	}

	f := lvl.file
	idx := frameNumber(f.Geometry.tilesAcross(), col, row) - 1 // 1-based frame_number -> 0-based GetFrame index
	frame, err := f.getFrame(idx)
	if err != nil {
		return nil, err
	}

	tw, th := f.Geometry.tileWidth, f.Geometry.tileHeight
	pix := frameToARGB(frame, tw, th, samplesPerPixelOf(f))

	ref := b.cache.Put(key, &cache.Tile{Pix: pix, Width: tw, Height: th})
	defer ref.Release()
	return pix, nil
}

// Dimensions implements slide.Backend.
func (b *Backend) Dimensions(levelIndex int) (int64, int64) {
	lvl, _, ok := b.levelAt(levelIndex)
	if !ok {
		return 0, 0
	}
	return lvl.file.Geometry.totalWidth, lvl.file.Geometry.totalHeight
}

// LevelCount implements slide.Backend.
func (b *Backend) LevelCount() int { return len(b.levels) }

// Downsample implements slide.Backend.
func (b *Backend) Downsample(levelIndex int) float64 {
	lvl, _, ok := b.levelAt(levelIndex)
	if !ok {
		return 0
	}
	return lvl.downsample
}

// Comment implements slide.Backend. The DICOM backend carries no
// freeform source comment equivalent to a JPEG COM marker.
func (b *Backend) Comment() string { return "" }

// AssociatedImages implements slide.Backend.
func (b *Backend) AssociatedImages() map[string]*slide.AssociatedImage {
	return b.associated
}

// Properties implements slide.Backend.
func (b *Backend) Properties() map[string]string {
	props := map[string]string{
		"openslide.vendor":      "dicom",
		"openslide.level-count": fmt.Sprintf("%d", len(b.levels)),
	}
	if len(b.levels) > 0 {
		mpp := b.levels[0].file.MicronsPerPixel
		if mpp > 0 {
			props["openslide.mpp-x"] = fmt.Sprintf("%g", mpp)
			props["openslide.mpp-y"] = fmt.Sprintf("%g", mpp)
		}
	}
	for i, lvl := range b.levels {
		prefix := fmt.Sprintf("openslide.level[%d].", i)
		g := lvl.file.Geometry
		props[prefix+"width"] = fmt.Sprintf("%d", g.totalWidth)
		props[prefix+"height"] = fmt.Sprintf("%d", g.totalHeight)
		props[prefix+"downsample"] = fmt.Sprintf("%g", lvl.downsample)
		props[prefix+"tile-width"] = fmt.Sprintf("%d", g.tileWidth)
		props[prefix+"tile-height"] = fmt.Sprintf("%d", g.tileHeight)
	}
	return props
}

// Close implements slide.Backend.
func (b *Backend) Close() error {
	closeAll(b.allFiles)
	return nil
}
