package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuanying/epub2md/internal/converter"
	"go.uber.org/multierr"
)

const (
	defaultJPEGQuality   = 85
	defaultMaxImageWidth = 0
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

// cliOptions is ConvertOptions plus the output collision policy.
type cliOptions struct {
	converter.ConvertOptions
	Overwrite bool
	Keep      bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epub2md <input.epub>",
		Short: "Convert EPUB files to Markdown",
		Long: `epub2md converts an EPUB ebook into a single Markdown document.

Images are extracted into an assets/ directory next to the Markdown file,
and links between chapters are rewritten to #fragment anchors of the
flattened document.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	flags := cmd.Flags()
	flags.Bool("overwrite", false, "Overwrite an existing output file")
	flags.Bool("keep", false, "Keep an existing output file and save as <name>_<n>.md")
	flags.StringP("output-dir", "o", "", "Output directory (default: directory of the input file)")
	flags.Bool("no-frontmatter", false, "Write a title heading instead of YAML frontmatter")
	flags.Int("max-image-width", defaultMaxImageWidth, "Downscale JPEG/PNG images wider than this (0: keep original)")
	flags.Int("quality", defaultJPEGQuality, "JPEG quality for downscaled images (60-100)")
	flags.String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaultLogFormat, "Log format (text, json)")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	return cmd
}

func readCLIOptions(cmd *cobra.Command, args []string) (cliOptions, error) {
	flags := cmd.Flags()
	inputPath := args[0]

	overwrite, _ := flags.GetBool("overwrite")
	keep, _ := flags.GetBool("keep")
	outputDir, _ := flags.GetString("output-dir")
	noFrontmatter, _ := flags.GetBool("no-frontmatter")
	maxWidth, _ := flags.GetInt("max-image-width")
	quality, _ := flags.GetInt("quality")
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")

	if overwrite && keep {
		return cliOptions{}, errors.New("--overwrite and --keep cannot be used together")
	}
	if maxWidth < 0 {
		return cliOptions{}, fmt.Errorf("--max-image-width must be 0 or greater, got %d", maxWidth)
	}
	if quality < 60 || quality > 100 {
		return cliOptions{}, fmt.Errorf("--quality must be between 60 and 100, got %d", quality)
	}
	if _, err := parseLogLevel(logLevel); err != nil {
		return cliOptions{}, fmt.Errorf("--log-level: %w", err)
	}
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return cliOptions{}, fmt.Errorf("--log-format must be text or json, got %q", logFormat)
	}
	if verbose {
		logLevel = "debug"
	}

	return cliOptions{
		ConvertOptions: converter.ConvertOptions{
			InputPath:     inputPath,
			OutputDir:     outputDir,
			OutputPath:    converter.DefaultOutputPath(outputDir, inputPath),
			NoFrontmatter: noFrontmatter,
			MaxImageWidth: maxWidth,
			JPEGQuality:   quality,
			Logger:        buildLogger(cmd.ErrOrStderr(), logLevel, logFormat),
		},
		Overwrite: overwrite,
		Keep:      keep,
	}, nil
}

func run(cmd *cobra.Command, args []string) error {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	logger := opts.Logger

	if _, err := os.Stat(opts.InputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", converter.ErrInputNotFound, opts.InputPath)
		}
		return err
	}

	outputPath, ok, err := resolveOutputPath(opts.OutputPath, opts.Overwrite, opts.Keep, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	opts.OutputPath = outputPath

	logger.Info("Converting", "input", opts.InputPath, "output", opts.OutputPath)

	res, err := converter.NewPipeline(opts.ConvertOptions).Convert()
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if res.Warnings != nil {
		logger.Warn("conversion finished with warnings", "count", len(multierr.Errors(res.Warnings)))
	}
	return nil
}

// resolveOutputPath applies the collision policy to path. ok is false when
// the user declined both overwriting and keeping.
func resolveOutputPath(path string, overwrite, keep bool, in io.Reader, out io.Writer, logger *slog.Logger) (string, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, true, nil
		}
		return "", false, fmt.Errorf("failed to stat output: %w", err)
	}

	switch {
	case overwrite:
		logger.Info("Overwriting existing file", "path", path)
		return path, true, nil
	case keep:
		return keepBoth(path, logger)
	}

	answers := bufio.NewReader(in)
	if confirm(answers, out, fmt.Sprintf("File %s already exists. Overwrite? (y/n): ", path)) {
		logger.Info("Overwriting existing file", "path", path)
		return path, true, nil
	}
	if confirm(answers, out, "Keep both (save as new file)? (y/n): ") {
		return keepBoth(path, logger)
	}
	return "", false, nil
}

func keepBoth(path string, logger *slog.Logger) (string, bool, error) {
	next, err := converter.NextFreePath(path)
	if err != nil {
		return "", false, err
	}
	logger.Info("File exists, saving as new file", "path", next)
	return next, true, nil
}

// confirm asks question and reports whether the answer was y.
func confirm(r *bufio.Reader, w io.Writer, question string) bool {
	fmt.Fprint(w, question)
	answer, err := r.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, err := parseLogLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
