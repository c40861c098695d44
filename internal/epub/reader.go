package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	epubMimetype   = "application/epub+zip"
	opfMediaType   = "application/oebps-package+xml"
	containerPath  = "META-INF/container.xml"
	mimetypeMember = "mimetype"
)

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
	ErrFileNotFound       = errors.New("file not found in EPUB")
)

// EPUBReader provides access to the members of an EPUB zip container.
type EPUBReader struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	opfPath   string
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// Open opens an EPUB file, checks its mimetype member and locates the OPF.
func Open(path string) (*EPUBReader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r := &EPUBReader{
		zipReader: zr,
		files:     make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		r.files[normalizePath(f.Name)] = f
	}

	if err := r.validateMimetype(); err != nil {
		zr.Close()
		return nil, err
	}
	if r.opfPath, err = r.rootfile(); err != nil {
		zr.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the EPUB reader
func (r *EPUBReader) Close() error {
	return r.zipReader.Close()
}

// OPFPath returns the path to the OPF file
func (r *EPUBReader) OPFPath() string {
	return r.opfPath
}

// Files returns a map of all files in the EPUB
func (r *EPUBReader) Files() map[string]*zip.File {
	return r.files
}

// ReadFile reads the contents of a file from the EPUB.
// OPF hrefs are URLs, so a percent-encoded path that has no exact entry is
// retried in its decoded form.
func (r *EPUBReader) ReadFile(path string) ([]byte, error) {
	f, err := r.lookup(path)
	if err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func (r *EPUBReader) lookup(path string) (*zip.File, error) {
	path = normalizePath(path)
	if f, ok := r.files[path]; ok {
		return f, nil
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		if f, ok := r.files[decoded]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

func (r *EPUBReader) validateMimetype() error {
	f, ok := r.files[mimetypeMember]
	if !ok {
		return ErrMimetypeNotFound
	}
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := r.ReadFile(mimetypeMember)
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if strings.TrimSpace(string(content)) != epubMimetype {
		return ErrInvalidMimetype
	}
	return nil
}

// rootfile returns the OPF path named by container.xml. A rootfile with the
// OPF media type (or none) is preferred; otherwise the first one is used.
func (r *EPUBReader) rootfile() (string, error) {
	content, err := r.ReadFile(containerPath)
	if err != nil {
		return "", ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 {
		return "", ErrOPFPathNotFound
	}

	for _, rf := range c.Rootfiles {
		if rf.MediaType == opfMediaType || rf.MediaType == "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	return normalizePath(c.Rootfiles[0].FullPath), nil
}

// normalizePath strips "./" and "/" prefixes from archive member names.
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	return strings.TrimPrefix(path, "/")
}
