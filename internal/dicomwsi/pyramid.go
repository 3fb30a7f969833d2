package dicomwsi

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/openslide-go/slidecore/internal/slide"
)

// pyramidLevel pairs one opened level instance with its downsample
// factor; pyramid.levels holds them width-sorted descending.
type pyramidLevel struct {
	file       *dicomFile
	downsample float64
}

// pyramid is the assembled result of scanning a slide's directory: the
// ordered levels and any label/overview associated images, all drawn
// from the single series selected by openDicomDirectory.
type pyramid struct {
	levels     []*pyramidLevel
	associated map[string]*dicomFile // "label", "macro"
	allFiles   []*dicomFile
}

// openDicomDirectory scans dir for DICOM instances, selects the series
// the caller's seriesFile belongs to, and assembles its levels.
//
// The source's original revision picked the series by scanning every
// file in the directory for the single widest level and using its
// SeriesInstanceUID (find_largest). The later, VFS-based revision
// instead takes the series from a caller-supplied
// file directly, which is what a directory-of-files open call naturally
// provides and is the revision this package implements: seriesFile
// pins the slide to one series without having to parse every file in
// the directory twice.
func openDicomDirectory(dir, seriesFile string) (*pyramid, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, slide.Wrap(slide.IOFailure, "openDicomDirectory", fmt.Errorf("%s: %w", dir, err))
	}

	pinned, err := openDicomFile(seriesFile)
	if err != nil {
		return nil, err
	}
	seriesUID := pinned.SeriesUID
	if seriesUID == "" {
		pinned.close()
		return nil, slide.Wrap(slide.BadFile, "openDicomDirectory", fmt.Errorf("%s: missing SeriesInstanceUID", seriesFile))
	}

	var all []*dicomFile
	all = append(all, pinned)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		if path == seriesFile {
			continue
		}
		f, err := openDicomFile(path)
		if err != nil {
			// Non-DICOM files, or DICOM files of an unrelated SOP
			// class, are expected clutter in a slide directory; skip
			// them rather than failing the whole open.
			log.Printf("dicomwsi: skipping %s: %v", path, err)
			continue
		}
		if f.SeriesUID != seriesUID {
			f.close()
			continue
		}
		all = append(all, f)
	}

	return assemblePyramid(seriesUID, all)
}

// assemblePyramid groups a single series' instances into a sorted level
// list and an associated-image map, matching level_new/add_level_array/
// compare_level_downsamples. Takes ownership of every file in all:
// on error, every file is closed before returning.
func assemblePyramid(seriesUID string, all []*dicomFile) (*pyramid, error) {
	p := &pyramid{associated: make(map[string]*dicomFile)}

	var widths []int64
	widthToLevel := make(map[int64]*dicomFile)
	for _, f := range all {
		switch f.Kind {
		case kindLevel:
			w := f.Geometry.totalWidth
			if _, dup := widthToLevel[w]; dup {
				closeAll(all)
				return nil, slide.Wrap(slide.BadFile, "assemblePyramid", fmt.Errorf("series %s: two levels share width %d", seriesUID, w))
			}
			widthToLevel[w] = f
			widths = append(widths, w)
			p.allFiles = append(p.allFiles, f)
		case kindLabel:
			p.associated["label"] = f
			p.allFiles = append(p.allFiles, f)
		case kindOverview:
			p.associated["macro"] = f
			p.allFiles = append(p.allFiles, f)
		default:
			f.close()
		}
	}
	if len(widths) == 0 {
		closeAll(all)
		return nil, slide.Wrap(slide.BadFile, "assemblePyramid", fmt.Errorf("series %s: no level instances found", seriesUID))
	}

	sort.Slice(widths, func(i, j int) bool { return widths[i] > widths[j] })
	level0Width := widths[0]
	for _, w := range widths {
		f := widthToLevel[w]
		p.levels = append(p.levels, &pyramidLevel{
			file:       f,
			downsample: downsampleFor(level0Width, w),
		})
	}

	return p, nil
}

func closeAll(files []*dicomFile) {
	for _, f := range files {
		f.close()
	}
}
