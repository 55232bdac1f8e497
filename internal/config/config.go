package config

import (
	"fmt"
	"image/png"
	"strings"

	"github.com/spf13/viper"
)

// Collision handling strategies for output names claimed twice in one run.
const (
	CollisionOverwrite = "overwrite"
	CollisionSkip      = "skip"
	CollisionRename    = "rename"
)

// PNG compression names accepted in png_compression.
const (
	PNGCompressionBest    = "best"
	PNGCompressionDefault = "default"
	PNGCompressionFast    = "fast"
	PNGCompressionNone    = "none"
)

// Config represents the main configuration structure
type Config struct {
	SourceDirectories   []string      `mapstructure:"source_directories"`
	OutputDirectory     string        `mapstructure:"output_directory"`
	SupportedExtensions []string      `mapstructure:"supported_extensions"`
	Image               ImageConfig   `mapstructure:"image"`
	Processing          ProcessConfig `mapstructure:"processing"`
	Logging             LoggingConfig `mapstructure:"logging"`
}

// ImageConfig contains re-encoding settings
type ImageConfig struct {
	MaxDimension   int    `mapstructure:"max_dimension"`
	JPEGQuality    int    `mapstructure:"jpeg_quality"`
	PNGCompression string `mapstructure:"png_compression"`
	AutoOrient     bool   `mapstructure:"auto_orient"`
}

// ProcessConfig contains run behavior settings
type ProcessConfig struct {
	CollisionHandling string `mapstructure:"collision_handling"`
	DryRun            bool   `mapstructure:"dry_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SourceDirectories:   []string{"images", "GHL images", "."},
		OutputDirectory:     "optimized_images",
		SupportedExtensions: []string{".png", ".jpg", ".jpeg"},
		Image: ImageConfig{
			MaxDimension:   1200,
			JPEGQuality:    85,
			PNGCompression: PNGCompressionBest,
			AutoOrient:     true,
		},
		Processing: ProcessConfig{
			CollisionHandling: CollisionOverwrite, // overwrite, skip, rename
			DryRun:            false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-optimizer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-optimizer")
		v.AddConfigPath("/etc/image-optimizer")
	}

	// Enable environment variable support
	v.SetEnvPrefix("IMAGE_OPTIMIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Decode into a zero Config. mapstructure merges a list into a pre-filled
	// slice element by element, which would keep trailing defaults.
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys
// that are absent from the config file.
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("source_directories", c.SourceDirectories)
	v.SetDefault("output_directory", c.OutputDirectory)
	v.SetDefault("supported_extensions", c.SupportedExtensions)
	v.SetDefault("image.max_dimension", c.Image.MaxDimension)
	v.SetDefault("image.jpeg_quality", c.Image.JPEGQuality)
	v.SetDefault("image.png_compression", c.Image.PNGCompression)
	v.SetDefault("image.auto_orient", c.Image.AutoOrient)
	v.SetDefault("processing.collision_handling", c.Processing.CollisionHandling)
	v.SetDefault("processing.dry_run", c.Processing.DryRun)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.SourceDirectories) == 0 {
		return fmt.Errorf("source_directories must not be empty")
	}

	if c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required")
	}

	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)
	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}
	for _, ext := range c.SupportedExtensions {
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			return fmt.Errorf("unsupported extension: %s (valid: .png, .jpg, .jpeg)", ext)
		}
	}

	if c.Image.MaxDimension <= 0 {
		return fmt.Errorf("max_dimension must be positive: %d", c.Image.MaxDimension)
	}

	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100: %d", c.Image.JPEGQuality)
	}

	c.Image.PNGCompression = strings.ToLower(c.Image.PNGCompression)
	if _, err := c.Image.PNGCompressionLevel(); err != nil {
		return err
	}

	validStrategies := map[string]bool{
		CollisionOverwrite: true,
		CollisionSkip:      true,
		CollisionRename:    true,
	}
	if !validStrategies[c.Processing.CollisionHandling] {
		return fmt.Errorf("invalid collision_handling strategy: %s (valid: overwrite, skip, rename)",
			c.Processing.CollisionHandling)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// PNGCompressionLevel maps the configured name to an encoder level.
func (ic ImageConfig) PNGCompressionLevel() (png.CompressionLevel, error) {
	switch ic.PNGCompression {
	case PNGCompressionBest:
		return png.BestCompression, nil
	case PNGCompressionDefault:
		return png.DefaultCompression, nil
	case PNGCompressionFast:
		return png.BestSpeed, nil
	case PNGCompressionNone:
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("invalid png_compression: %s (valid: best, default, fast, none)", ic.PNGCompression)
	}
}

// IsImageExtension checks if the extension is one of the supported image extensions
func (c *Config) IsImageExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return normalized
}
