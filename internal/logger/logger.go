package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines where log entries go and at which level.
//
// The rotating file and the console are independent sinks: the file keeps
// the run history at Level while the console follows the CLI flags, so
// --quiet still leaves info entries in the log file.
type Config struct {
	Level        string    // File level (e.g., "info", "debug", "error")
	FilePath     string    // Rotating log file, empty disables it
	MaxSize      int       // Megabytes before rotation
	MaxBackups   int       // Rotated files to retain
	MaxAge       int       // Days to retain rotated files
	Compress     bool      // Gzip rotated files
	Console      bool      // Mirror entries to Stream
	ConsoleLevel string    // Console level, defaults to Level
	Stream       io.Writer // Console stream, defaults to os.Stderr
}

// sink writes formatted entries of the given levels to one writer.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	levels []logrus.Level
}

func newSink(w io.Writer, level logrus.Level) *sink {
	return &sink{w: w, levels: logrus.AllLevels[:level+1]}
}

func (s *sink) Levels() []logrus.Level {
	return s.levels
}

func (s *sink) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// NewLogger returns a JSON logrus.Logger writing to the sinks enabled in config.
// Console entries go to stderr so stdout stays reserved for the run report.
func NewLogger(config Config) (*logrus.Logger, error) {
	fileLevel, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	consoleLevel := fileLevel
	if config.ConsoleLevel != "" {
		if consoleLevel, err = logrus.ParseLevel(config.ConsoleLevel); err != nil {
			return nil, err
		}
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
		},
	})

	// The logger level gates every sink, so it is the most verbose of them.
	level := logrus.PanicLevel

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}
		logger.AddHook(newSink(&lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}, fileLevel))
		level = fileLevel
	}

	if config.Console {
		stream := config.Stream
		if stream == nil {
			stream = os.Stderr
		}
		logger.AddHook(newSink(stream, consoleLevel))
		if consoleLevel > level {
			level = consoleLevel
		}
	}

	logger.SetLevel(level)
	return logger, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithFile returns a logger entry for one image path.
func WithFile(logger *logrus.Logger, filePath string) *logrus.Entry {
	return logger.WithField("file", filePath)
}

// WithFileOperation returns a logger entry for the pipeline stage that
// handled (or failed on) an image path.
func WithFileOperation(logger *logrus.Logger, filePath, operation string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"file":      filePath,
		"operation": operation,
	})
}
