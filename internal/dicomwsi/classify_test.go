package dicomwsi

import "testing"

func TestClassifyLevel(t *testing.T) {
	cases := []struct {
		name string
		v    [4]string
		want imageKind
	}{
		{"original volume", [4]string{"ORIGINAL", "PRIMARY", "VOLUME", "NONE"}, kindLevel},
		{"derived resampled volume", [4]string{"DERIVED", "PRIMARY", "VOLUME", "RESAMPLED"}, kindLevel},
		{"label", [4]string{"ORIGINAL", "PRIMARY", "LABEL", "NONE"}, kindLabel},
		{"overview", [4]string{"ORIGINAL", "PRIMARY", "OVERVIEW", "NONE"}, kindOverview},
		{"unrelated", [4]string{"ORIGINAL", "PRIMARY", "THUMBNAIL", "NONE"}, kindNone},
		{"empty", [4]string{}, kindNone},
	}
	for _, c := range cases {
		if got := classify(c.v); got != c.want {
			t.Errorf("%s: classify(%v) = %v, want %v", c.name, c.v, got, c.want)
		}
	}
}

func TestSplitImageType(t *testing.T) {
	got := splitImageType(`ORIGINAL\PRIMARY\VOLUME\NONE`)
	want := [4]string{"ORIGINAL", "PRIMARY", "VOLUME", "NONE"}
	if got != want {
		t.Fatalf("splitImageType = %v, want %v", got, want)
	}

	// Fewer than 4 values: trailing positions read as "".
	short := splitImageType(`ORIGINAL\PRIMARY`)
	if short != ([4]string{"ORIGINAL", "PRIMARY", "", ""}) {
		t.Fatalf("splitImageType(short) = %v", short)
	}
}
