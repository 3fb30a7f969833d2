package slide

import (
	"errors"
	"testing"
)

type fakeBackend struct {
	closed   int
	closeErr error
}

func (f *fakeBackend) PaintRegion(dst *Surface, x, y int64, levelIndex int, w, h int) error {
	return nil
}
func (f *fakeBackend) Dimensions(levelIndex int) (int64, int64) {
	if levelIndex != 0 {
		return 0, 0
	}
	return 1000, 2000
}
func (f *fakeBackend) LevelCount() int              { return 1 }
func (f *fakeBackend) Downsample(levelIndex int) float64 { return 1 }
func (f *fakeBackend) Comment() string              { return "hello" }
func (f *fakeBackend) AssociatedImages() map[string]*AssociatedImage { return nil }
func (f *fakeBackend) Properties() map[string]string { return map[string]string{"k": "v"} }
func (f *fakeBackend) Close() error {
	f.closed++
	return f.closeErr
}

func TestSlideOpenState(t *testing.T) {
	b := &fakeBackend{}
	s := Open(b, nil)
	w, h := s.Dimensions(0)
	if w != 1000 || h != 2000 {
		t.Fatalf("Dimensions(0) = %d,%d, want 1000,2000", w, h)
	}
	if s.Comment() != "hello" {
		t.Fatalf("Comment() = %q", s.Comment())
	}
}

func TestSlideDimensionsOutOfRange(t *testing.T) {
	s := Open(&fakeBackend{}, nil)
	w, h := s.Dimensions(5)
	if w != 0 || h != 0 {
		t.Fatalf("Dimensions(5) = %d,%d, want 0,0", w, h)
	}
}

func TestSlideCloseIsIdempotent(t *testing.T) {
	b := &fakeBackend{}
	s := Open(b, nil)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if b.closed != 1 {
		t.Fatalf("backend Close called %d times, want 1", b.closed)
	}
}

func TestClosedSlideRejectsOperations(t *testing.T) {
	s := Open(&fakeBackend{}, nil)
	_ = s.Close()

	if err := s.PaintRegion(nil, 0, 0, 0, 1, 1); err == nil {
		t.Fatal("expected error painting a closed slide")
	}
	var se *Error
	if err := s.PaintRegion(nil, 0, 0, 0, 1, 1); !errors.As(err, &se) {
		t.Fatal("expected *Error from PaintRegion on closed slide")
	}
}
