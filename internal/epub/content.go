package epub

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Content represents a parsed XHTML content file
type Content struct {
	ID        string            // Manifest ID
	Path      string            // File path
	Document  *goquery.Document // Parsed HTML document
	ImageRefs []string          // Image references as written in the markup
	IDs       []string          // Element ids in document order
}

// LoadContent loads and parses an XHTML content file
// id: manifest item ID
// path: file path within EPUB
// content: XHTML file content
func LoadContent(id, path string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		ID:        id,
		Path:      path,
		Document:  doc,
		ImageRefs: []string{},
		IDs:       []string{},
	}

	doc.Find("img, image").Each(func(i int, s *goquery.Selection) {
		if ref := ImageSource(s.Get(0)); ref != "" {
			c.ImageRefs = append(c.ImageRefs, ref)
		}
	})

	doc.Find("[id]").Each(func(i int, s *goquery.Selection) {
		if v, _ := s.Attr("id"); v != "" {
			c.IDs = append(c.IDs, v)
		}
	})

	return c, nil
}

// ImageSource returns the reference carried by an image-bearing element:
// src first, then xlink:href, then href.
func ImageSource(n *html.Node) string {
	if n == nil {
		return ""
	}
	for _, key := range [][2]string{{"", "src"}, {"xlink", "href"}, {"", "href"}} {
		for _, attr := range n.Attr {
			if matchAttr(attr, key[0], key[1]) && attr.Val != "" {
				return attr.Val
			}
		}
	}
	return ""
}

// matchAttr checks if an html.Attribute matches the given namespace and key.
// The HTML parser stores namespaced SVG attributes either split into
// Namespace/Key or as a single prefixed key, depending on context.
func matchAttr(attr html.Attribute, namespace, key string) bool {
	if namespace == "" {
		return attr.Key == key && attr.Namespace == ""
	}
	if attr.Namespace == namespace && attr.Key == key {
		return true
	}
	return attr.Key == namespace+":"+key
}
