package epub

import (
	"bytes"
	"fmt"
	"path"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Book is an opened EPUB with its package document parsed.
type Book struct {
	reader *EPUBReader
	opf    *OPF
}

// OpenBook opens the EPUB at path and parses its OPF.
func OpenBook(filename string) (*Book, error) {
	reader, err := Open(filename)
	if err != nil {
		return nil, err
	}

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("failed to read OPF: %w", err)
	}

	opf, err := ParseOPF(opfData, path.Dir(reader.OPFPath()))
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("failed to parse OPF: %w", err)
	}

	return &Book{reader: reader, opf: opf}, nil
}

// Close releases the underlying archive.
func (b *Book) Close() error {
	return b.reader.Close()
}

// Metadata returns the book's Dublin Core metadata.
func (b *Book) Metadata() Metadata {
	return b.opf.Metadata
}

// OPF returns the parsed package document.
func (b *Book) OPF() *OPF {
	return b.opf
}

// Item looks up a manifest item by id.
func (b *Book) Item(id string) (ManifestItem, bool) {
	item, ok := b.opf.Manifest[id]
	return item, ok
}

// ReadItem returns the raw bytes of the manifest item id. A leading UTF-8
// BOM is stripped.
func (b *Book) ReadItem(id string) ([]byte, error) {
	item, ok := b.opf.Manifest[id]
	if !ok {
		return nil, fmt.Errorf("manifest item %q not found", id)
	}
	data, err := b.reader.ReadFile(item.Href)
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(data, utf8BOM), nil
}
