package dicomwsi

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cocosip/go-dicom/pkg/dicom/dataset"
	"github.com/cocosip/go-dicom/pkg/dicom/parser"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/imaging"

	// Register the JPEG codecs WSI instances are typically encapsulated
	// with; imaging.CreatePixelData dispatches to whichever of these
	// matches the file's transfer syntax.
	_ "github.com/cocosip/go-dicom-codec/jpeg/baseline"
	_ "github.com/cocosip/go-dicom-codec/jpeg/extended"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless14sv1"
	_ "github.com/cocosip/go-dicom-codec/jpeg2000/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpeg2000/lossy"
	_ "github.com/cocosip/go-dicom-codec/jpegls/lossless"

	"github.com/openslide-go/slidecore/internal/slide"
)

// vlWholeSlideMicroscopyImageStorage is the SOP Class UID dicom_file_new
// checks for; any other SOP class is rejected outright.
const vlWholeSlideMicroscopyImageStorage = "1.2.840.10008.5.1.4.1.1.77.1.6"

// dicomFile is one parsed instance from the slide's directory: a level,
// a label/overview associated image, or an ignored instance. Decoding a
// frame goes through pixelData.GetFrame, which the underlying library
// does not document as safe for concurrent use across frames of the
// same instance, so every access is serialized by mu.
type dicomFile struct {
	mu sync.Mutex

	Path            string
	Kind            imageKind
	SeriesUID       string
	SOPClassUID     string
	Geometry        levelGeometry
	MicronsPerPixel float64 // 0 if PixelSpacing absent

	ds        *dataset.Dataset
	pixelData *imaging.PixelData
}

// openDicomFile parses one file and extracts everything pyramid
// assembly needs, without yet decoding any pixel data.
func openDicomFile(path string) (*dicomFile, error) {
	res, err := parser.ParseFile(path, parser.WithReadOption(parser.ReadAll))
	if err != nil {
		return nil, slide.Wrap(slide.IOFailure, "openDicomFile", fmt.Errorf("%s: %w", path, err))
	}
	ds := res.Dataset

	sopClass, _ := ds.GetString(tag.MediaStorageSOPClassUID)
	if sopClass != vlWholeSlideMicroscopyImageStorage {
		return nil, slide.Wrap(slide.BadFile, "openDicomFile", fmt.Errorf("%s: SOP class %q is not VL Whole Slide Microscopy Image Storage", path, sopClass))
	}

	seriesUID, _ := ds.GetString(tag.SeriesInstanceUID)

	imageType, _ := ds.GetString(tag.ImageType)
	kind := classify(splitImageType(imageType))

	geom, err := readGeometry(ds)
	if err != nil {
		return nil, slide.Wrap(slide.BadFile, "openDicomFile", fmt.Errorf("%s: %w", path, err))
	}
	if kind == kindLevel {
		if err := validateSquareTile(geom); err != nil {
			return nil, slide.Wrap(slide.BadFile, "openDicomFile", fmt.Errorf("%s: %w", path, err))
		}
		if err := validateFrameCount(geom); err != nil {
			return nil, slide.Wrap(slide.BadFile, "openDicomFile", fmt.Errorf("%s: %w", path, err))
		}
	}

	return &dicomFile{
		Path:            path,
		Kind:            kind,
		SeriesUID:       seriesUID,
		SOPClassUID:     sopClass,
		Geometry:        geom,
		MicronsPerPixel: micronsPerPixel(ds),
		ds:              ds,
	}, nil
}

// splitImageType breaks DICOM's backslash-delimited multi-valued string
// form into the four fixed positions is_type compares against. Missing
// trailing values read as "".
func splitImageType(v string) [4]string {
	parts := strings.Split(v, "\\")
	var out [4]string
	for i := 0; i < len(out) && i < len(parts); i++ {
		out[i] = parts[i]
	}
	return out
}

// readGeometry extracts the sizing attributes level_new reads: the
// whole-slide pixel matrix dimensions (falling back to plain Rows/
// Columns for a single-frame instance with no TotalPixelMatrix*
// attributes), the per-frame tile size, and the frame count.
func readGeometry(ds *dataset.Dataset) (levelGeometry, error) {
	rows := ds.TryGetUInt16(tag.Rows, 0)
	cols := ds.TryGetUInt16(tag.Columns, 0)
	if rows == 0 || cols == 0 {
		return levelGeometry{}, fmt.Errorf("missing Rows/Columns")
	}

	totalRows := int64(ds.TryGetUInt16(tag.TotalPixelMatrixRows, 0))
	totalCols := int64(ds.TryGetUInt16(tag.TotalPixelMatrixColumns, 0))
	if totalRows == 0 {
		totalRows = int64(rows)
	}
	if totalCols == 0 {
		totalCols = int64(cols)
	}

	frameCount := int(ds.TryGetUInt16(tag.NumberOfFrames, 0))
	if frameCount == 0 {
		frameCount = 1
	}

	return levelGeometry{
		totalWidth:  totalCols,
		totalHeight: totalRows,
		tileWidth:   int(cols),
		tileHeight:  int(rows),
		frameCount:  frameCount,
	}, nil
}

// micronsPerPixel derives the slide's mpp from PixelSpacing (row
// spacing, value 0), which DICOM expresses in millimeters.
func micronsPerPixel(ds *dataset.Dataset) float64 {
	v, err := ds.GetFloat64(tag.PixelSpacing, 0)
	if err != nil {
		return 0
	}
	return v * 1000
}

// ensurePixelData lazily builds the frame decoder, matching the C
// source's on-demand BOT read: the cost is paid on first tile read, not
// at open time.
func (f *dicomFile) ensurePixelData() (*imaging.PixelData, error) {
	if f.pixelData != nil {
		return f.pixelData, nil
	}
	pd, err := imaging.CreatePixelData(f.ds)
	if err != nil {
		return nil, slide.Wrap(slide.DecodeFailure, "ensurePixelData", fmt.Errorf("%s: %w", f.Path, err))
	}
	f.pixelData = pd
	return pd, nil
}

// getFrame decodes one frame, serialized against concurrent access to
// this file's decoder state.
func (f *dicomFile) getFrame(index int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pd, err := f.ensurePixelData()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= pd.FrameCount() {
		return nil, slide.Wrap(slide.OutOfRange, "getFrame", fmt.Errorf("%s: frame %d out of range (have %d)", f.Path, index, pd.FrameCount()))
	}
	frame, err := pd.GetFrame(index)
	if err != nil {
		return nil, slide.Wrap(slide.DecodeFailure, "getFrame", fmt.Errorf("%s: frame %d: %w", f.Path, index, err))
	}
	return frame, nil
}

func (f *dicomFile) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pixelData = nil
	f.ds = nil
}
