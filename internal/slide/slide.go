// Package slide defines the shared engine object and backend seam both
// pyramid backends (jpegmosaic, dicomwsi) plug into: the Slide handle,
// its open/close state machine, the error taxonomy, and associated-image
// storage.
package slide

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/openslide-go/slidecore/internal/cache"
	"github.com/openslide-go/slidecore/internal/grid"
)

// Kind classifies a failure the way callers need to branch on.
type Kind int

const (
	// BadFile covers malformed input: bad JPEG headers, missing DICOM
	// SOP class, non-square tiles, missing required attributes.
	BadFile Kind = iota
	// OutOfRange covers level or frame indices outside known bounds.
	OutOfRange
	// IOFailure covers read/seek failures against the backing files.
	IOFailure
	// DecodeFailure covers a downstream JPEG decode rejecting a buffer.
	DecodeFailure
)

func (k Kind) String() string {
	switch k {
	case BadFile:
		return "bad file"
	case OutOfRange:
		return "out of range"
	case IOFailure:
		return "I/O failure"
	case DecodeFailure:
		return "decode failure"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its Kind classification. Callers that need
// the kind use errors.As; callers that only want the underlying cause
// use errors.Unwrap / errors.Is through it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap constructs an *Error. err may be nil if the failure has no
// underlying cause beyond its classification.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// AssociatedImage is a non-pyramidal image decoded in one shot: a label,
// macro/overview, or thumbnail.
type AssociatedImage struct {
	Width, Height int
	Pix           []byte // ARGB32, row-major
}

// Backend is the dynamic-dispatch seam between a Slide and a concrete
// pyramid implementation: the Slide never type-switches on the
// concrete backend.
type Backend interface {
	// PaintRegion paints the rectangle [x,y)-[x+w,y+h), in levelIndex's
	// own pixel coordinates, onto dst.
	PaintRegion(dst *Surface, x, y int64, levelIndex int, w, h int) error
	// Dimensions returns (0,0) for an out-of-range levelIndex.
	Dimensions(levelIndex int) (w, h int64)
	// LevelCount returns the number of pyramid levels.
	LevelCount() int
	// Downsample returns the level's downsample factor relative to
	// level 0, or 0 for an out-of-range levelIndex.
	Downsample(levelIndex int) float64
	// Comment returns a free-form source comment, or "" if none.
	Comment() string
	// AssociatedImages returns the backend's associated images by name.
	AssociatedImages() map[string]*AssociatedImage
	// Properties returns read-only diagnostic key/value pairs.
	Properties() map[string]string
	// Close releases backend-owned resources (files, background
	// workers). Slide.Close calls it at most once; it does not wait
	// for foreground calls that are already in progress.
	Close() error
}

// Surface is a re-export of the grid package's output buffer type so
// callers of Slide don't need to import internal/grid directly for this
// one type.
type Surface = grid.Surface

type state int32

const (
	stateOpening state = iota
	stateOpen
	stateClosing
	stateClosed
)

// Slide is the process-unique handle owning a backend, a bounded tile
// cache, and the open/close state machine. The state machine is
// monotonic: Opening -> Open -> Closing -> Closed, never reversed.
type Slide struct {
	mu      sync.Mutex
	state   atomic.Int32
	backend Backend
	cache   *cache.Cache
}

// Open wraps an already-constructed backend and the tile cache it was
// built against into a Slide, immediately transitioning to Open. Callers
// (the jpegmosaic/dicomwsi package-level Open functions) construct the
// cache first and wire it into the backend, since per-tile reads need to
// consult it; Slide only takes ownership of the pointer here.
func Open(backend Backend, c *cache.Cache) *Slide {
	if c == nil {
		c = cache.New(0)
	}
	s := &Slide{
		backend: backend,
		cache:   c,
	}
	s.state.Store(int32(stateOpen))
	return s
}

// Backend exposes the underlying backend for package-internal callers
// that need direct access during construction (e.g. to seed the cache
// key space). Exported for use by the jpegmosaic/dicomwsi packages; the
// public API surface for arbitrary callers is PaintRegion et al.
func (s *Slide) Backend() Backend { return s.backend }

// Cache exposes the shared tile cache to backend implementations.
func (s *Slide) Cache() *cache.Cache { return s.cache }

func (s *Slide) isOpen() bool {
	return state(s.state.Load()) == stateOpen
}

// PaintRegion paints one level's region onto dst. x and y are level-0
// coordinates; they are divided by the level's downsample before the
// backend paints in the level's own coordinates. Returns a non-nil
// error if the slide is not Open or the backend reports a failure.
func (s *Slide) PaintRegion(dst *Surface, x, y int64, levelIndex int, w, h int) error {
	if !s.isOpen() {
		return Wrap(BadFile, "PaintRegion", fmt.Errorf("slide is not open"))
	}
	if ds := s.backend.Downsample(levelIndex); ds > 0 {
		x = int64(float64(x) / ds)
		y = int64(float64(y) / ds)
	}
	return s.backend.PaintRegion(dst, x, y, levelIndex, w, h)
}

// Dimensions returns (0,0) for an out-of-range level.
func (s *Slide) Dimensions(levelIndex int) (w, h int64) {
	if !s.isOpen() {
		return 0, 0
	}
	return s.backend.Dimensions(levelIndex)
}

// LevelCount returns the number of pyramid levels.
func (s *Slide) LevelCount() int {
	if !s.isOpen() {
		return 0
	}
	return s.backend.LevelCount()
}

// Downsample returns a level's downsample factor relative to level 0.
func (s *Slide) Downsample(levelIndex int) float64 {
	if !s.isOpen() {
		return 0
	}
	return s.backend.Downsample(levelIndex)
}

// Comment returns the backend's free-form source comment.
func (s *Slide) Comment() string {
	if !s.isOpen() {
		return ""
	}
	return s.backend.Comment()
}

// AssociatedImages returns the backend's associated images.
func (s *Slide) AssociatedImages() map[string]*AssociatedImage {
	if !s.isOpen() {
		return nil
	}
	return s.backend.AssociatedImages()
}

// Properties returns the backend's diagnostic properties.
func (s *Slide) Properties() map[string]string {
	if !s.isOpen() {
		return nil
	}
	return s.backend.Properties()
}

// Close transitions Open -> Closing -> Closed, joining background
// workers and releasing backend resources exactly once. Subsequent
// calls are no-ops returning nil, matching the monotonic state machine:
// once Closed, a slide stays Closed.
func (s *Slide) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state(s.state.Load()) != stateOpen {
		return nil
	}
	s.state.Store(int32(stateClosing))
	err := s.backend.Close()
	s.state.Store(int32(stateClosed))
	return err
}
