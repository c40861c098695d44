package converter

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"github.com/yuanying/epub2md/internal/epub"
	"go.uber.org/multierr"
	"golang.org/x/text/unicode/norm"
)

// AssetsDirName is the directory, relative to the Markdown file, that holds
// extracted images. Image references in the output point into it.
const AssetsDirName = "assets"

// FilenameMapping maps a decoded original basename to its on-disk filename.
type FilenameMapping map[string]string

// Lookup returns the allocated filename for a decoded basename.
func (m FilenameMapping) Lookup(decodedBasename string) (string, bool) {
	filename, ok := m[mappingKey(decodedBasename)]
	return filename, ok
}

// FilenameAllocator hands out collision-free filenames within one run.
type FilenameAllocator struct {
	used    map[string]bool
	mapping FilenameMapping
}

// NewFilenameAllocator creates an allocator with no names in use.
func NewFilenameAllocator() *FilenameAllocator {
	return &FilenameAllocator{
		used:    make(map[string]bool),
		mapping: make(FilenameMapping),
	}
}

// Allocate reserves a filename for originalBasename. The name is returned
// unchanged when free; otherwise name_1.ext, name_2.ext, ... is probed.
// The mapping is keyed by the decoded basename; if two calls decode to the
// same key the later allocation replaces the earlier one in the mapping,
// while both filenames stay reserved.
func (a *FilenameAllocator) Allocate(originalBasename string) string {
	filename := originalBasename
	ext := path.Ext(originalBasename)
	name := strings.TrimSuffix(originalBasename, ext)
	for n := 1; a.used[filename]; n++ {
		filename = name + "_" + strconv.Itoa(n) + ext
	}
	a.used[filename] = true
	a.mapping[mappingKey(decodeBasename(originalBasename))] = filename
	return filename
}

// Mapping returns a copy of the mapping built so far.
func (a *FilenameAllocator) Mapping() FilenameMapping {
	m := make(FilenameMapping, len(a.mapping))
	for k, v := range a.mapping {
		m[k] = v
	}
	return m
}

// decodeBasename percent-decodes a basename, returning it unchanged when it
// is not valid escaping.
func decodeBasename(basename string) string {
	decoded, err := url.PathUnescape(basename)
	if err != nil {
		return basename
	}
	return decoded
}

func mappingKey(decodedBasename string) string {
	return norm.NFC.String(decodedBasename)
}

// Asset is one image item extracted from the book.
type Asset struct {
	ID        string
	MediaType string
	Href      string
	Filename  string // allocated on-disk filename
	Data      []byte
}

// AssetSource is the part of an opened book that asset extraction uses.
type AssetSource interface {
	OPF() *epub.OPF
	ReadItem(id string) ([]byte, error)
}

// ExtractResult is the outcome of ExtractAssets.
type ExtractResult struct {
	Mapping  FilenameMapping
	Assets   []Asset
	Warnings error // per-asset failures, combined with multierr
}

// ExtractAssets writes every image item of the manifest, in manifest order,
// into assetsDir and returns the finished filename mapping.
// Failing to read or write a single asset is recorded in Warnings and
// extraction continues.
func ExtractAssets(src AssetSource, assetsDir string, optimizer *ImageOptimizer, logger *slog.Logger) *ExtractResult {
	if logger == nil {
		logger = discardLogger()
	}
	opf := src.OPF()
	alloc := NewFilenameAllocator()
	result := &ExtractResult{}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		untyped := item.MediaType == ""
		if !untyped && !epub.IsImageMediaType(item.MediaType) {
			continue
		}

		data, err := src.ReadItem(id)
		if err != nil {
			if untyped {
				continue
			}
			logger.Warn("could not extract image", "id", id, "error", err)
			result.Warnings = multierr.Append(result.Warnings, fmt.Errorf("failed to read image %q: %w", id, err))
			continue
		}

		mediaType := item.MediaType
		if untyped {
			kind, err := filetype.Match(data)
			if err != nil || !filetype.IsImage(data) {
				continue
			}
			mediaType = kind.MIME.Value
			logger.Debug("sniffed untyped manifest item", "id", id, "media_type", mediaType)
		}

		filename := alloc.Allocate(path.Base(item.Href))

		if optimizer != nil {
			out, err := optimizer.Optimize(item.Href, mediaType, data)
			if err != nil {
				logger.Warn("image optimization failed, keeping original", "id", id, "error", err)
			} else {
				if out.Warning != "" {
					logger.Debug("image passed through", "id", id, "reason", out.Warning)
				}
				data = out.Data
			}
		}

		if err := os.WriteFile(filepath.Join(assetsDir, filename), data, 0o644); err != nil {
			logger.Warn("could not write image", "id", id, "filename", filename, "error", err)
			result.Warnings = multierr.Append(result.Warnings, fmt.Errorf("failed to write image %q: %w", id, err))
			continue
		}

		result.Assets = append(result.Assets, Asset{
			ID:        id,
			MediaType: mediaType,
			Href:      item.Href,
			Filename:  filename,
			Data:      data,
		})
	}

	result.Mapping = alloc.Mapping()
	return result
}

// PlanAssets returns the assets ExtractAssets would allocate for the typed
// image items of opf, and the matching mapping, without reading or writing
// anything.
func PlanAssets(opf *epub.OPF) ([]Asset, FilenameMapping) {
	alloc := NewFilenameAllocator()
	var plan []Asset
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if !epub.IsImageMediaType(item.MediaType) {
			continue
		}
		plan = append(plan, Asset{
			ID:        id,
			MediaType: item.MediaType,
			Href:      item.Href,
			Filename:  alloc.Allocate(path.Base(item.Href)),
		})
	}
	return plan, alloc.Mapping()
}
