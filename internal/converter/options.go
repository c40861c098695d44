package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInputNotFound is returned when the input EPUB does not exist.
var ErrInputNotFound = errors.New("input file not found")

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	InputPath string
	// OutputDir receives the Markdown file and the assets directory.
	// Defaults to the directory of InputPath.
	OutputDir string
	// OutputPath overrides the Markdown file path. Defaults to
	// DefaultOutputPath(OutputDir, InputPath).
	OutputPath string
	// NoFrontmatter replaces the YAML block with a top-level title heading.
	NoFrontmatter bool
	// MaxImageWidth enables downscaling of wider JPEG/PNG images. 0 keeps
	// image bytes untouched.
	MaxImageWidth int
	JPEGQuality   int
	Logger        *slog.Logger
}

// Validate checks option values.
func (o ConvertOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.InputPath, validation.Required, validation.By(func(value any) error {
			if filepath.Ext(o.InputPath) == "" {
				return validation.NewError("epub2md.input_path.extension", "must have a file extension")
			}
			return nil
		})),
		validation.Field(&o.MaxImageWidth, validation.Min(0)),
		validation.Field(&o.JPEGQuality, validation.Min(0), validation.Max(100)),
	)
}

// withDefaults fills in OutputDir, OutputPath and Logger.
func (o ConvertOptions) withDefaults() ConvertOptions {
	if o.OutputDir == "" {
		o.OutputDir = filepath.Dir(o.InputPath)
	}
	if o.OutputPath == "" {
		o.OutputPath = DefaultOutputPath(o.OutputDir, o.InputPath)
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	return o
}

// DefaultOutputPath returns <outputDir>/<input basename>.md.
func DefaultOutputPath(outputDir, inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	return filepath.Join(outputDir, name+".md")
}

// NextFreePath returns p if nothing exists there, otherwise the first of
// <base>_1<ext>, <base>_2<ext>, ... that does not exist.
func NextFreePath(p string) (string, error) {
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	candidate := p
	for n := 1; ; n++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		candidate = base + "_" + strconv.Itoa(n) + ext
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
