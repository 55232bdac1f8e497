package optimizer

import (
	"time"

	"image-optimizer-go/internal/statistics"
)

// Action is the outcome of processing one candidate file.
type Action int

const (
	// ActionOptimized means the output was smaller and is kept.
	ActionOptimized Action = iota
	// ActionDiscarded means the output was not smaller and was dropped.
	ActionDiscarded
	// ActionFailed means the file could not be decoded, encoded or written.
	ActionFailed
	// ActionSkipped means another file already claimed the output name.
	ActionSkipped
	// ActionSuperseded means a later file with the same name replaced this output.
	ActionSuperseded
)

// String returns the name of the action.
func (a Action) String() string {
	switch a {
	case ActionOptimized:
		return "optimized"
	case ActionDiscarded:
		return "discarded"
	case ActionFailed:
		return "failed"
	case ActionSkipped:
		return "skipped"
	case ActionSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Result describes the processing of a single candidate file.
type Result struct {
	InputPath    string
	OutputPath   string
	OriginalSize int64
	NewSize      int64
	Width        int
	Height       int
	Action       Action
	Operation    string
	Message      string
	Error        error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Saved returns the bytes saved by a retained output, or zero.
func (r Result) Saved() int64 {
	if r.Action != ActionOptimized {
		return 0
	}
	return r.OriginalSize - r.NewSize
}

// Report is everything a run produced.
type Report struct {
	Stats   *statistics.Statistics
	Results []Result
}

// Retained returns the results whose output files are kept.
func (r *Report) Retained() []Result {
	var kept []Result
	for _, res := range r.Results {
		if res.Action == ActionOptimized {
			kept = append(kept, res)
		}
	}
	return kept
}
