// Package optimizer re-encodes oversized PNG and JPEG files from a list of
// source directories into a single output directory, keeping only outputs
// that are smaller than their sources.
package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"image-optimizer-go/internal/config"
	"image-optimizer-go/internal/logger"
	"image-optimizer-go/internal/statistics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Optimizer runs the batch over the configured source directories.
type Optimizer struct {
	cfg  *config.Config
	fs   afero.Fs
	log  *logrus.Logger
	out  io.Writer
	opts Options
}

// run holds the state of one Run call.
type run struct {
	report *Report
	// claimed maps an output file name to the index of its retained result.
	claimed map[string]int
}

// New returns an Optimizer that reads and writes through fs and prints the
// per-file report lines to out.
func New(cfg *config.Config, fs afero.Fs, log *logrus.Logger, out io.Writer) (*Optimizer, error) {
	level, err := cfg.Image.PNGCompressionLevel()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}
	return &Optimizer{
		cfg: cfg,
		fs:  fs,
		log: log,
		out: out,
		opts: Options{
			MaxDimension:   cfg.Image.MaxDimension,
			JPEGQuality:    cfg.Image.JPEGQuality,
			PNGCompression: level,
			AutoOrient:     cfg.Image.AutoOrient,
		},
	}, nil
}

// Run processes every candidate file and returns the report. Per-file
// failures are recorded in the report; an error is returned only when the
// output directory cannot be created or ctx is cancelled, in which case the
// partial report is returned as well.
func (o *Optimizer) Run(ctx context.Context) (*Report, error) {
	r := &run{
		report:  &Report{Stats: statistics.NewStatistics()},
		claimed: make(map[string]int),
	}
	o.log.WithFields(logrus.Fields{
		"sources": o.cfg.SourceDirectories,
		"output":  o.cfg.OutputDirectory,
		"dry_run": o.cfg.Processing.DryRun,
	}).Info("Starting image optimization")

	if !o.cfg.Processing.DryRun {
		if err := o.fs.MkdirAll(o.cfg.OutputDirectory, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	for _, dir := range o.cfg.SourceDirectories {
		if ctx.Err() != nil {
			break
		}
		o.processDirectory(ctx, r, dir)
	}

	r.report.Stats.Finalize()
	if err := ctx.Err(); err != nil {
		o.log.Warnf("Optimization interrupted: %v", err)
		return r.report, err
	}

	o.log.WithFields(logrus.Fields{
		"optimized":   r.report.Stats.FilesOptimized,
		"bytes_saved": r.report.Stats.BytesSaved,
		"duration":    r.report.Stats.Duration.String(),
	}).Info("Image optimization completed")
	return r.report, nil
}

// processDirectory handles the candidates of one source directory in name order.
func (o *Optimizer) processDirectory(ctx context.Context, r *run, dir string) {
	stats := r.report.Stats

	info, err := o.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		o.log.Debugf("Skipping missing source directory: %s", dir)
		stats.IncrementDirectoriesMissing()
		return
	}

	if filepath.Clean(dir) == filepath.Clean(o.cfg.OutputDirectory) {
		o.log.Warnf("Skipping source directory that is the output directory: %s", dir)
		return
	}

	entries, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		logger.WithFileOperation(o.log, dir, "read_dir").Errorf("Could not read directory: %v", err)
		stats.AddError(dir, "read_dir", err.Error())
		return
	}
	stats.IncrementDirectoriesScanned()

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !o.cfg.IsImageExtension(filepath.Ext(entry.Name())) {
			continue
		}
		stats.IncrementFilesFound()
		res := o.processFile(r, filepath.Join(dir, entry.Name()))
		o.record(r, res)
	}
}

// processFile runs decode, normalize, downscale and encode for one file and
// keeps the output only when it is smaller than the source.
func (o *Optimizer) processFile(r *run, path string) Result {
	name := filepath.Base(path)
	res := Result{
		InputPath: path,
		StartedAt: time.Now(),
	}
	log := logger.WithFile(o.log, path)
	log.Debug("Processing file")

	if o.cfg.Processing.CollisionHandling == config.CollisionSkip {
		if idx, ok := r.claimed[name]; ok {
			res.Action = ActionSkipped
			res.Message = fmt.Sprintf("output name already used by %s", r.report.Results[idx].InputPath)
			res.FinishedAt = time.Now()
			return res
		}
	}

	format, err := FormatForName(name)
	if err != nil {
		return fail(res, "format", err)
	}

	info, err := o.fs.Stat(path)
	if err != nil {
		return fail(res, "stat", fmt.Errorf("stat: %w", err))
	}
	res.OriginalSize = info.Size()

	img, err := o.decode(path)
	if err != nil {
		return fail(res, "decode", err)
	}

	img = Normalize(img)
	img = Downscale(img, o.opts.MaxDimension)
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()

	var buf bytes.Buffer
	if err := Encode(&buf, img, format, o.opts); err != nil {
		return fail(res, "encode", err)
	}

	if int64(buf.Len()) >= res.OriginalSize {
		res.NewSize = int64(buf.Len())
		res.Action = ActionDiscarded
		res.Message = "re-encoded file not smaller than original"
		o.removeStale(r, name)
		res.FinishedAt = time.Now()
		return res
	}

	outName := o.outputName(r, name)
	res.OutputPath = filepath.Join(o.cfg.OutputDirectory, outName)

	if o.cfg.Processing.DryRun {
		res.NewSize = int64(buf.Len())
	} else {
		size, err := o.writeOutput(res.OutputPath, buf.Bytes())
		if err != nil {
			res.OutputPath = ""
			return fail(res, "write", err)
		}
		res.NewSize = size
	}

	res.Action = ActionOptimized
	res.Message = "image optimized"
	res.FinishedAt = time.Now()
	return res
}

// decode opens and decodes path; the file is closed before returning.
func (o *Optimizer) decode(path string) (image.Image, error) {
	f, err := o.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, err := Decode(f, o.opts.AutoOrient)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// writeOutput writes data next to outPath and renames it into place.
// The temporary file never survives a failure.
func (o *Optimizer) writeOutput(outPath string, data []byte) (int64, error) {
	tmpPath := outPath + ".tmp"
	if err := afero.WriteFile(o.fs, tmpPath, data, 0644); err != nil {
		_ = o.fs.Remove(tmpPath)
		return 0, fmt.Errorf("write tmp file: %w", err)
	}

	info, err := o.fs.Stat(tmpPath)
	if err != nil {
		_ = o.fs.Remove(tmpPath)
		return 0, fmt.Errorf("stat tmp file: %w", err)
	}

	if err := o.fs.Rename(tmpPath, outPath); err != nil {
		_ = o.fs.Remove(tmpPath)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return info.Size(), nil
}

// outputName resolves the output file name for a retained result
// according to the collision handling strategy.
func (o *Optimizer) outputName(r *run, name string) string {
	if _, ok := r.claimed[name]; !ok {
		return name
	}
	if o.cfg.Processing.CollisionHandling != config.CollisionRename {
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, counter, ext)
		if _, ok := r.claimed[candidate]; !ok {
			return candidate
		}
	}
}

// removeStale deletes an output left by an earlier run for a file that no
// longer gets smaller. Outputs claimed in this run are kept.
func (o *Optimizer) removeStale(r *run, name string) {
	if o.cfg.Processing.DryRun {
		return
	}
	if _, ok := r.claimed[name]; ok {
		return
	}
	stale := filepath.Join(o.cfg.OutputDirectory, name)
	if _, err := o.fs.Stat(stale); err != nil {
		return
	}
	if err := o.fs.Remove(stale); err != nil && !os.IsNotExist(err) {
		logger.WithFileOperation(o.log, stale, "remove_stale").Warnf("Could not remove stale output: %v", err)
		return
	}
	o.log.Debugf("Removed stale output: %s", stale)
}

// record folds a result into the report, prints its report line and
// updates the statistics.
func (o *Optimizer) record(r *run, res Result) {
	stats := r.report.Stats
	name := filepath.Base(res.InputPath)
	log := logger.WithFile(o.log, res.InputPath)

	switch res.Action {
	case ActionOptimized:
		outName := filepath.Base(res.OutputPath)
		if idx, ok := r.claimed[outName]; ok {
			prev := &r.report.Results[idx]
			stats.RevokeOptimized(prev.OriginalSize, prev.NewSize)
			prev.Action = ActionSuperseded
			prev.Message = fmt.Sprintf("output replaced by %s", res.InputPath)
			fmt.Fprintf(o.out, "Replaced %s from %s (saved %dKB no longer counted)\n",
				outName, prev.InputPath, statistics.KB(prev.Saved()))
			log.Infof("Replacing output of %s", prev.InputPath)
		}
		r.claimed[outName] = len(r.report.Results)
		stats.RecordOptimized(res.OriginalSize, res.NewSize)

		verb := "Optimized"
		if o.cfg.Processing.DryRun {
			verb = "Would optimize"
		}
		fmt.Fprintf(o.out, "%s %s: %dKB → %dKB (saved %dKB)\n", verb, name,
			statistics.KB(res.OriginalSize), statistics.KB(res.NewSize), statistics.KB(res.Saved()))
		log.WithFields(logrus.Fields{
			"output":        res.OutputPath,
			"original_size": res.OriginalSize,
			"new_size":      res.NewSize,
			"width":         res.Width,
			"height":        res.Height,
		}).Info("Optimized image")

	case ActionDiscarded:
		stats.IncrementFilesDiscarded()
		log.WithFields(logrus.Fields{
			"original_size": res.OriginalSize,
			"new_size":      res.NewSize,
		}).Debug("Output not smaller, discarded")

	case ActionSkipped:
		stats.IncrementFilesSkipped()
		log.Infof("Skipping file: %s", res.Message)

	case ActionFailed:
		stats.IncrementFilesFailed()
		stats.AddError(res.InputPath, res.Operation, res.Error.Error())
		fmt.Fprintf(o.out, "Error optimizing %s: %v\n", name, res.Error)
		logger.WithFileOperation(o.log, res.InputPath, res.Operation).Errorf("Could not optimize file: %v", res.Error)
	}

	r.report.Results = append(r.report.Results, res)
}

// fail marks res as failed at the given operation.
func fail(res Result, operation string, err error) Result {
	res.Action = ActionFailed
	res.Operation = operation
	res.Error = err
	res.Message = err.Error()
	res.FinishedAt = time.Now()
	return res
}
