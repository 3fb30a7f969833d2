// Command slideinfo prints pyramid geometry and properties for a slide
// opened from either a JPEG mosaic manifest or a DICOM series.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/openslide-go/slidecore"
)

func main() {
	dicomDir := flag.String("dicom-dir", "", "open a DICOM WSI directory")
	seriesFile := flag.String("series-file", "", "file within -dicom-dir pinning the series")
	manifest := flag.String("manifest", "", "open a JPEG mosaic from a manifest CSV (path,z,x,y)")
	flag.Parse()

	var s *slidecore.Slide
	var err error
	switch {
	case *dicomDir != "":
		if *seriesFile == "" {
			fmt.Fprintln(os.Stderr, "slideinfo: -series-file is required with -dicom-dir")
			os.Exit(1)
		}
		s, err = slidecore.OpenDICOM(*dicomDir, *seriesFile, 0)
	case *manifest != "":
		var entries []slidecore.ManifestEntry
		entries, err = readManifest(*manifest)
		if err == nil {
			s, err = slidecore.OpenJPEGMosaic(entries, 0)
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: slideinfo -dicom-dir DIR -series-file FILE | -manifest CSV")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "slideinfo: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	fmt.Printf("Levels: %d\n", s.LevelCount())
	for i := 0; i < s.LevelCount(); i++ {
		w, h := s.Dimensions(i)
		fmt.Printf("  level %d: %dx%d, downsample=%g\n", i, w, h, s.Downsample(i))
	}
	fmt.Printf("Comment: %q\n", s.Comment())

	fmt.Println("Properties:")
	props := s.Properties()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %s\n", k, props[k])
	}

	assoc := s.AssociatedImages()
	if len(assoc) > 0 {
		fmt.Println("Associated images:")
		for name, img := range assoc {
			fmt.Printf("  %s: %dx%d\n", name, img.Width, img.Height)
		}
	}
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
