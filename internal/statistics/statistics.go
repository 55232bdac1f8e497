package statistics

import (
	"fmt"
	"strings"
	"time"
)

// Statistics contains the counters for one optimization run.
// A run is sequential, so the counters are plain fields.
type Statistics struct {
	FilesFound     int64
	FilesOptimized int64
	FilesDiscarded int64
	FilesFailed    int64
	FilesSkipped   int64

	DirectoriesScanned int64
	DirectoriesMissing int64

	// Byte totals cover retained outputs only.
	BytesOriginal  int64
	BytesOptimized int64
	BytesSaved     int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []StatError
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of candidate files by 1.
func (s *Statistics) IncrementFilesFound() {
	s.FilesFound++
}

// IncrementFilesDiscarded increases the count of files whose output was not smaller by 1.
func (s *Statistics) IncrementFilesDiscarded() {
	s.FilesDiscarded++
}

// IncrementFilesFailed increases the count of files that could not be processed by 1.
func (s *Statistics) IncrementFilesFailed() {
	s.FilesFailed++
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	s.FilesSkipped++
}

// IncrementDirectoriesScanned increases the count of scanned source directories by 1.
func (s *Statistics) IncrementDirectoriesScanned() {
	s.DirectoriesScanned++
}

// IncrementDirectoriesMissing increases the count of absent source directories by 1.
func (s *Statistics) IncrementDirectoriesMissing() {
	s.DirectoriesMissing++
}

// RecordOptimized counts a retained output of newSize bytes for a source of originalSize bytes.
func (s *Statistics) RecordOptimized(originalSize, newSize int64) {
	s.FilesOptimized++
	s.BytesOriginal += originalSize
	s.BytesOptimized += newSize
	s.BytesSaved += originalSize - newSize
}

// RevokeOptimized undoes RecordOptimized for an output that was replaced later in the run.
func (s *Statistics) RevokeOptimized(originalSize, newSize int64) {
	s.FilesOptimized--
	s.BytesOriginal -= originalSize
	s.BytesOptimized -= newSize
	s.BytesSaved -= originalSize - newSize
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize records the end time and duration.
func (s *Statistics) Finalize() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// GetSummary returns the end-of-run report.
func (s *Statistics) GetSummary() string {
	return fmt.Sprintf("Optimization complete!\nOptimized %d images\nTotal space saved: %dKB",
		s.FilesOptimized, KB(s.BytesSaved))
}

// GetDetails returns a formatted breakdown of all counters.
func (s *Statistics) GetDetails() string {
	return fmt.Sprintf(`Image Optimizer Statistics:

Files:
		Candidates: %d
		Optimized: %d
		Not Smaller: %d
		Skipped: %d
		Errors: %d

Bytes:
		Original: %s
		Optimized: %s
		Saved: %s (%.1f%%)

Directories:
		Scanned: %d
		Missing: %d

Duration: %v`,
		s.FilesFound,
		s.FilesOptimized,
		s.FilesDiscarded,
		s.FilesSkipped,
		s.FilesFailed,
		formatBytes(s.BytesOriginal),
		formatBytes(s.BytesOptimized),
		formatBytes(s.BytesSaved),
		s.SavedPercentage(),
		s.DirectoriesScanned,
		s.DirectoriesMissing,
		s.Duration.Round(time.Millisecond))
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return b.String()
}

// SavedPercentage returns the saved bytes as a percentage of the retained originals.
func (s *Statistics) SavedPercentage() float64 {
	if s.BytesOriginal <= 0 {
		return 0
	}
	return float64(s.BytesSaved) * 100 / float64(s.BytesOriginal)
}

// KB converts a byte count to whole kilobytes, truncating.
func KB(bytes int64) int64 {
	return bytes / 1024
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
