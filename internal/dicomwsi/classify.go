package dicomwsi

// imageKind classifies one DICOM instance by its ImageType value:
// a pyramid level, a label image, a macro/overview image, or none of
// those (ignored).
type imageKind int

const (
	kindNone imageKind = iota
	kindLevel
	kindLabel
	kindOverview
)

// levelImageTypes and friends mirror the source's allowed_types tables:
// ImageType is a 4-valued DICOM attribute (value1\value2\value3\value4),
// and an instance is accepted if it exactly matches any row.
var levelImageTypes = [][4]string{
	{"ORIGINAL", "PRIMARY", "VOLUME", "NONE"},
	{"DERIVED", "PRIMARY", "VOLUME", "RESAMPLED"},
}

var labelImageTypes = [][4]string{
	{"ORIGINAL", "PRIMARY", "LABEL", "NONE"},
}

var overviewImageTypes = [][4]string{
	{"ORIGINAL", "PRIMARY", "OVERVIEW", "NONE"},
}

// matchesImageType reports whether value matches any row of allowed.
//
// The source's is_type() guards each value comparison with "match > 0"
// rather than "match >= 0" when resolving g_strv index lookups, which
// would reject index 0 of every row outright. Nothing in the caller
// depends on that: it reads as a copy-paste slip against a sentinel
// "not found" convention of -1, not intentional behavior, so unlike the
// documented pw-1/ph-1 region clip it is not preserved here.
func matchesImageType(value [4]string, allowed [][4]string) bool {
	for _, row := range allowed {
		if row == value {
			return true
		}
	}
	return false
}

// classify resolves an instance's ImageType into its role in the slide.
func classify(value [4]string) imageKind {
	switch {
	case matchesImageType(value, levelImageTypes):
		return kindLevel
	case matchesImageType(value, labelImageTypes):
		return kindLabel
	case matchesImageType(value, overviewImageTypes):
		return kindOverview
	default:
		return kindNone
	}
}
