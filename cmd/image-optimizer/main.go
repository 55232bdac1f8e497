package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"image-optimizer-go/internal/config"
	"image-optimizer-go/internal/logger"
	"image-optimizer-go/internal/optimizer"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dryRun  bool
	verbose bool
	quiet   bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-optimizer",
	Short: "Re-encode oversized PNG and JPEG images and report space savings",
	Long: `image-optimizer scans the source directories (images, "GHL images" and the
current directory by default) for PNG and JPEG files and writes smaller
versions of them to optimized_images.

For every image:
- Transparency is flattened onto a white background
- Images larger than 1200px on either side are scaled down
- PNG is re-encoded with maximum compression, JPEG at quality 85
- The result is kept only if it is smaller than the original`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize(cmd.Context(), dryRun)
	},
}

// scanCmd reports what would be optimized without writing anything.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show which images would be optimized without writing files",
	Long: `Runs the full decode and re-encode pipeline in memory and prints the
savings each image would get. The output directory is not touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize(cmd.Context(), true)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute savings without writing optimized files")

	rootCmd.AddCommand(scanCmd)
}

// runOptimize loads the configuration and runs one optimization pass.
func runOptimize(ctx context.Context, simulate bool) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if simulate {
		cfg.Processing.DryRun = true
	}

	log := setupLogger(cfg)

	var out io.Writer = os.Stdout
	if quiet {
		out = io.Discard
	}

	opt, err := optimizer.New(cfg, afero.NewOsFs(), log, out)
	if err != nil {
		return fmt.Errorf("failed to create optimizer: %w", err)
	}

	report, err := opt.Run(ctx)
	if report != nil && !quiet {
		fmt.Println("\n" + report.Stats.GetSummary())
		if verbose {
			fmt.Println("\n" + report.Stats.GetDetails())
			fmt.Println("\n" + report.Stats.GetErrorSummary())
		}
	}
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	return nil
}

// setupLogger configures and returns a logger. The log file keeps the
// configured level; --verbose and --quiet only change the console.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose || quiet,
	}

	if verbose {
		loggerCfg.ConsoleLevel = "debug"
	}
	if quiet {
		loggerCfg.ConsoleLevel = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
