// Package slidecore implements a whole-slide-image pyramidal tile
// engine over two source formats: a JPEG mosaic (a grid of restart-
// marker-delimited JPEG files) and a DICOM VL Whole Slide Microscopy
// Image directory. Both backends present the same Slide handle.
package slidecore

import (
	"github.com/openslide-go/slidecore/internal/cache"
	"github.com/openslide-go/slidecore/internal/dicomwsi"
	"github.com/openslide-go/slidecore/internal/jpegmosaic"
	"github.com/openslide-go/slidecore/internal/slide"
)

// DefaultCacheBudgetBytes is the tile cache's default byte budget; pass
// a positive cacheBudgetBytes to OpenJPEGMosaic or OpenDICOM to override
// it, e.g. for tests that want to force eviction.
const DefaultCacheBudgetBytes = cache.DefaultBudgetBytes

// Slide is the process-unique handle returned by OpenJPEGMosaic and
// OpenDICOM.
type Slide = slide.Slide

// AssociatedImage is a non-pyramidal image (label, macro/overview)
// decoded in one shot.
type AssociatedImage = slide.AssociatedImage

// ManifestEntry describes one source JPEG file's place in a mosaic; see
// OpenJPEGMosaic.
type ManifestEntry = jpegmosaic.ManifestEntry

// Error is the taxonomy-carrying error type every operation returns;
// use errors.As to recover its Kind.
type Error = slide.Error

// Kind classifies an Error (see the slide package's Kind constants,
// re-exported below).
type Kind = slide.Kind

const (
	BadFile       = slide.BadFile
	OutOfRange    = slide.OutOfRange
	IOFailure     = slide.IOFailure
	DecodeFailure = slide.DecodeFailure
)

// OpenJPEGMosaic builds a Slide from a set of JPEG files described by
// manifest, which must list every file in zxy-successor order. A
// cacheBudgetBytes of 0 uses DefaultCacheBudgetBytes.
func OpenJPEGMosaic(manifest []ManifestEntry, cacheBudgetBytes int64) (*Slide, error) {
	return jpegmosaic.Open(manifest, jpegmosaic.Options{CacheBudgetBytes: cacheBudgetBytes})
}

// OpenDICOM builds a Slide from the DICOM directory dir, pinned to the
// series that seriesFile belongs to. A cacheBudgetBytes of 0 uses
// DefaultCacheBudgetBytes.
func OpenDICOM(dir, seriesFile string, cacheBudgetBytes int64) (*Slide, error) {
	return dicomwsi.Open(dir, seriesFile, dicomwsi.Options{CacheBudgetBytes: cacheBudgetBytes})
}
