package statistics

import (
	"fmt"
	"strings"
	"testing"
)

func TestGetSummary_Empty(t *testing.T) {
	s := NewStatistics()
	s.Finalize()

	want := "Optimization complete!\nOptimized 0 images\nTotal space saved: 0KB"
	if got := s.GetSummary(); got != want {
		t.Errorf("GetSummary() = %q, want %q", got, want)
	}
}

func TestRecordOptimized_TruncatesKB(t *testing.T) {
	s := NewStatistics()
	s.RecordOptimized(500*1024, 100*1024+1023)
	s.RecordOptimized(2047, 1000)

	if s.FilesOptimized != 2 {
		t.Errorf("FilesOptimized = %d, want 2", s.FilesOptimized)
	}
	wantSaved := int64(500*1024-(100*1024+1023)) + 1047
	if s.BytesSaved != wantSaved {
		t.Errorf("BytesSaved = %d, want %d", s.BytesSaved, wantSaved)
	}
	if !strings.Contains(s.GetSummary(), fmt.Sprintf("Total space saved: %dKB", wantSaved/1024)) {
		t.Errorf("summary = %q", s.GetSummary())
	}
}

func TestRevokeOptimized(t *testing.T) {
	s := NewStatistics()
	s.RecordOptimized(4000, 1000)
	s.RecordOptimized(6000, 5000)
	s.RevokeOptimized(4000, 1000)

	if s.FilesOptimized != 1 {
		t.Errorf("FilesOptimized = %d, want 1", s.FilesOptimized)
	}
	if s.BytesSaved != 1000 {
		t.Errorf("BytesSaved = %d, want 1000", s.BytesSaved)
	}
	if s.BytesOriginal != 6000 || s.BytesOptimized != 5000 {
		t.Errorf("bytes = %d/%d, want 6000/5000", s.BytesOriginal, s.BytesOptimized)
	}
}

func TestSavedPercentage(t *testing.T) {
	s := NewStatistics()
	if s.SavedPercentage() != 0 {
		t.Errorf("empty SavedPercentage = %v", s.SavedPercentage())
	}
	s.RecordOptimized(1000, 250)
	if got := s.SavedPercentage(); got != 75 {
		t.Errorf("SavedPercentage = %v, want 75", got)
	}
}

func TestGetErrorSummary(t *testing.T) {
	s := NewStatistics()
	if got := s.GetErrorSummary(); got != "No errors occurred during processing" {
		t.Errorf("GetErrorSummary() = %q", got)
	}

	for i := 0; i < 12; i++ {
		s.AddError(fmt.Sprintf("images/%d.png", i), "decode", "bad data")
	}
	got := s.GetErrorSummary()
	if !strings.HasPrefix(got, "Errors (12 total):") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "... and 2 more errors") {
		t.Errorf("missing truncation line: %q", got)
	}
	if !strings.Contains(got, "decode: images/0.png - bad data") {
		t.Errorf("missing first error: %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetDetails(t *testing.T) {
	s := NewStatistics()
	s.IncrementFilesFound()
	s.IncrementFilesFound()
	s.IncrementFilesFailed()
	s.IncrementDirectoriesScanned()
	s.IncrementDirectoriesMissing()
	s.RecordOptimized(2048, 1024)
	s.Finalize()

	got := s.GetDetails()
	for _, want := range []string{"Candidates: 2", "Optimized: 1", "Errors: 1", "Scanned: 1", "Missing: 1", "Saved: 1.0 KB (50.0%)"} {
		if !strings.Contains(got, want) {
			t.Errorf("GetDetails() missing %q:\n%s", want, got)
		}
	}
}
