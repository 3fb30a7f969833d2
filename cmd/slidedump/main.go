// Command slidedump paints one region of a slide level and writes it to
// a PNG file, for manual inspection of either backend.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/openslide-go/slidecore"
	"github.com/openslide-go/slidecore/internal/encode"
	"github.com/openslide-go/slidecore/internal/grid"
)

func main() {
	dicomDir := flag.String("dicom-dir", "", "open a DICOM WSI directory")
	seriesFile := flag.String("series-file", "", "file within -dicom-dir pinning the series")
	manifest := flag.String("manifest", "", "open a JPEG mosaic from a manifest CSV (path,z,x,y)")
	level := flag.Int("level", 0, "pyramid level to read from")
	x := flag.Int64("x", 0, "region origin x, in level-0 coordinates")
	y := flag.Int64("y", 0, "region origin y, in level-0 coordinates")
	w := flag.Int("w", 512, "region width")
	h := flag.Int("h", 512, "region height")
	out := flag.String("out", "region.png", "output PNG path")
	flag.Parse()

	var s *slidecore.Slide
	var err error
	switch {
	case *dicomDir != "":
		s, err = slidecore.OpenDICOM(*dicomDir, *seriesFile, 0)
	case *manifest != "":
		var entries []slidecore.ManifestEntry
		entries, err = readManifest(*manifest)
		if err == nil {
			s, err = slidecore.OpenJPEGMosaic(entries, 0)
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: slidedump -dicom-dir DIR -series-file FILE | -manifest CSV [-level N] [-x X -y Y -w W -h H] -out region.png")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "slidedump: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	surface := grid.NewSurface(*w, *h)
	if err := s.PaintRegion(surface, *x, *y, *level, *w, *h); err != nil {
		fmt.Fprintf(os.Stderr, "slidedump: PaintRegion: %v\n", err)
		os.Exit(1)
	}

	img := &image.RGBA{
		Pix:    surface.Pix,
		Stride: surface.Stride,
		Rect:   image.Rect(0, 0, surface.Width, surface.Height),
	}

	enc := &encode.PNGEncoder{}
	data, err := enc.Encode(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "slidedump: encode: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "slidedump: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%dx%d)\n", *out, *w, *h)
}

// readManifest loads a JPEG mosaic manifest: one "path,z,x,y" row per
// source file, in zxy-successor order.
func readManifest(path string) ([]slidecore.ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 4
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	entries := make([]slidecore.ManifestEntry, 0, len(rows))
	for i, row := range rows {
		z, err1 := strconv.ParseInt(row[1], 10, 64)
		x, err2 := strconv.ParseInt(row[2], 10, 64)
		y, err3 := strconv.ParseInt(row[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s: row %d: bad z/x/y", path, i)
		}
		entries = append(entries, slidecore.ManifestEntry{Path: row[0], Z: z, X: x, Y: y})
	}
	return entries, nil
}
