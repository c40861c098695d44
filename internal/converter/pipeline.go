package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuanying/epub2md/internal/epub"
	"go.uber.org/multierr"
)

// Chapter is one spine item after conversion. Err is set when the item
// could not be fetched or parsed; Markdown is empty in that case.
type Chapter struct {
	ID       string
	Href     string
	Markdown string
	Err      error
}

// Result is the outcome of one conversion run.
type Result struct {
	OutputPath string
	AssetsDir  string
	Assets     []Asset
	Chapters   []Chapter
	// Warnings combines every tolerated asset and chapter failure.
	Warnings error
}

// Pipeline orchestrates the EPUB to Markdown conversion.
type Pipeline struct {
	Options ConvertOptions
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	return &Pipeline{Options: opts}
}

// Convert executes the conversion pipeline. Assets are extracted in full
// before the first chapter is rewritten, and the Markdown file is written
// once at the end.
func (p *Pipeline) Convert() (*Result, error) {
	if err := p.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts := p.Options.withDefaults()
	logger := opts.Logger

	if _, err := os.Stat(opts.InputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, opts.InputPath)
		}
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	book, err := epub.OpenBook(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer book.Close()

	result := &Result{
		OutputPath: opts.OutputPath,
		AssetsDir:  filepath.Join(opts.OutputDir, AssetsDirName),
	}

	if err := os.MkdirAll(result.AssetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	extracted := ExtractAssets(book, result.AssetsDir, NewImageOptimizer(opts), logger)
	result.Assets = extracted.Assets
	result.Warnings = extracted.Warnings
	logger.Debug("extracted assets", "count", len(extracted.Assets))

	var asm Assembler
	if opts.NoFrontmatter {
		asm.WriteHeader(TitleHeading(book.Metadata()))
	} else {
		fm, err := BuildFrontmatter(book.Metadata())
		if err != nil {
			return nil, err
		}
		asm.WriteHeader(fm)
	}

	rewriter := NewRewriter(extracted.Mapping, logger)
	ids := newIDTracker(logger)
	for _, spineItem := range book.OPF().Spine {
		ch, hasContent := p.convertChapter(book, rewriter, ids, spineItem.IDRef, logger)
		if ch.Err != nil {
			result.Warnings = multierr.Append(result.Warnings, ch.Err)
		}
		if hasContent {
			asm.AddChapter(ch.Markdown)
		}
		result.Chapters = append(result.Chapters, ch)
	}

	if err := os.MkdirAll(filepath.Dir(result.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(result.OutputPath, []byte(asm.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Info("Saved Markdown", "path", result.OutputPath, "chapters", asm.Chapters(), "assets", len(result.Assets))

	return result, nil
}

// convertChapter fetches and converts one spine item. Fetch and parse
// failures are returned in Chapter.Err. hasContent is false when there is
// nothing to assemble.
func (p *Pipeline) convertChapter(book *epub.Book, rw *Rewriter, ids *idTracker, idref string, logger *slog.Logger) (ch Chapter, hasContent bool) {
	ch.ID = idref

	item, ok := book.Item(idref)
	if !ok {
		ch.Err = fmt.Errorf("spine item %q not found in manifest", idref)
		logger.Warn("skipping chapter", "id", idref, "error", ch.Err)
		return ch, false
	}
	ch.Href = item.Href

	if !isXHTML(item.MediaType) {
		ch.Err = fmt.Errorf("spine item %q has non-HTML media type %q", idref, item.MediaType)
		logger.Warn("skipping chapter", "id", idref, "error", ch.Err)
		return ch, false
	}

	data, err := book.ReadItem(idref)
	if err != nil {
		ch.Err = fmt.Errorf("failed to read chapter %q: %w", idref, err)
		logger.Warn("skipping chapter", "id", idref, "error", err)
		return ch, false
	}
	if len(data) == 0 {
		logger.Debug("skipping empty chapter", "id", idref)
		return ch, false
	}

	content, err := epub.LoadContent(item.ID, item.Href, data)
	if err != nil {
		ch.Err = fmt.Errorf("failed to parse chapter %q: %w", idref, err)
		logger.Warn("skipping chapter", "id", idref, "error", err)
		return ch, false
	}
	ids.add(content)

	ch.Markdown = rw.ConvertDocument(content.Document)
	logger.Debug("converted chapter", "id", idref, "href", item.Href, "images", len(content.ImageRefs))
	return ch, true
}

// idTracker warns about element ids that repeat across chapters. Flattened
// into one document such ids make fragment links ambiguous.
type idTracker struct {
	seen   map[string]string
	logger *slog.Logger
}

func newIDTracker(logger *slog.Logger) *idTracker {
	return &idTracker{seen: make(map[string]string), logger: logger}
}

func (t *idTracker) add(c *epub.Content) {
	for _, id := range c.IDs {
		if first, dup := t.seen[id]; dup {
			if first != c.Path {
				t.logger.Warn("duplicate element id across chapters", "id", id, "first", first, "again", c.Path)
			}
			continue
		}
		t.seen[id] = c.Path
	}
}

// isXHTML checks if a media type indicates an XHTML content file.
func isXHTML(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}
