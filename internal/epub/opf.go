package epub

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// packageDoc mirrors the parts of the OPF package document the converter reads.
type packageDoc struct {
	UniqueID string `xml:"unique-identifier,attr"`
	Metadata struct {
		Title       []dcElement   `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creator     []dcElement   `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Language    []dcElement   `xml:"http://purl.org/dc/elements/1.1/ language"`
		Identifier  []dcElement   `xml:"http://purl.org/dc/elements/1.1/ identifier"`
		Publisher   []dcElement   `xml:"http://purl.org/dc/elements/1.1/ publisher"`
		Date        []dcElement   `xml:"http://purl.org/dc/elements/1.1/ date"`
		Description []dcElement   `xml:"http://purl.org/dc/elements/1.1/ description"`
		Subject     []dcElement   `xml:"http://purl.org/dc/elements/1.1/ subject"`
		Rights      []dcElement   `xml:"http://purl.org/dc/elements/1.1/ rights"`
		Meta        []metaElement `xml:"meta"`
	} `xml:"metadata"`
	Items []struct {
		ID         string `xml:"id,attr"`
		Href       string `xml:"href,attr"`
		MediaType  string `xml:"media-type,attr"`
		Properties string `xml:"properties,attr"`
	} `xml:"manifest>item"`
	ItemRefs []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
}

// dcElement is any Dublin Core element. Role only appears on creators.
type dcElement struct {
	Text string `xml:",chardata"`
	ID   string `xml:"id,attr"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	Lang string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
}

// metaElement carries its value as text in EPUB 3 and as @content in EPUB 2.
type metaElement struct {
	Text     string `xml:",chardata"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

func (m metaElement) value() string {
	if v := strings.TrimSpace(m.Text); v != "" {
		return v
	}
	return strings.TrimSpace(m.Content)
}

// ParseOPF decodes an OPF document. Manifest hrefs are resolved against
// opfDir, the archive directory holding the OPF (e.g. "OEBPS").
func ParseOPF(content []byte, opfDir string) (*OPF, error) {
	var doc packageDoc
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{Metadata: doc.metadata()}
	opf.Manifest, opf.ManifestOrder = doc.manifest(opfDir)
	for _, ref := range doc.ItemRefs {
		opf.Spine = append(opf.Spine, SpineItem{IDRef: ref.IDRef, Linear: ref.Linear != "no"})
	}
	return opf, nil
}

// manifest indexes items by id. A repeated id keeps its first position in
// the order while the later declaration replaces the item.
func (doc *packageDoc) manifest(opfDir string) (map[string]ManifestItem, []string) {
	items := make(map[string]ManifestItem, len(doc.Items))
	order := make([]string, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it.ID == "" {
			continue
		}
		if _, seen := items[it.ID]; !seen {
			order = append(order, it.ID)
		}
		items[it.ID] = ManifestItem{
			ID:         it.ID,
			Href:       joinPath(opfDir, it.Href),
			MediaType:  strings.TrimSpace(it.MediaType),
			Properties: strings.Fields(it.Properties),
		}
	}
	return items, order
}

func (doc *packageDoc) metadata() Metadata {
	dc := &doc.Metadata
	md := Metadata{
		Title:       firstText(dc.Title),
		Language:    firstText(dc.Language),
		Identifier:  doc.identifier(),
		Publisher:   firstText(dc.Publisher),
		Date:        firstText(dc.Date),
		Description: firstText(dc.Description),
		Rights:      firstText(dc.Rights),
		Subjects:    []string{},
		Creators:    make([]Creator, 0, len(dc.Creator)),
	}
	for _, s := range dc.Subject {
		if v := strings.TrimSpace(s.Text); v != "" {
			md.Subjects = append(md.Subjects, v)
		}
	}

	// EPUB 3 moves creator roles into <meta refines="#id" property="role">.
	roles := make(map[string]string)
	for _, m := range dc.Meta {
		if m.Property == "role" && strings.HasPrefix(m.Refines, "#") {
			roles[m.Refines[1:]] = m.value()
		}
	}
	for _, c := range dc.Creator {
		role := c.Role
		if r, ok := roles[c.ID]; ok && c.ID != "" {
			role = r
		}
		md.Creators = append(md.Creators, Creator{Name: strings.TrimSpace(c.Text), Role: role, Lang: c.Lang})
	}
	return md
}

// identifier prefers the element named by the package's unique-identifier.
func (doc *packageDoc) identifier() string {
	ids := doc.Metadata.Identifier
	for _, id := range ids {
		if doc.UniqueID != "" && id.ID == doc.UniqueID {
			return strings.TrimSpace(id.Text)
		}
	}
	if len(ids) > 0 {
		return strings.TrimSpace(ids[0].Text)
	}
	return ""
}

// firstText returns the first non-blank element text, trimmed.
func firstText(elems []dcElement) string {
	for _, e := range elems {
		if v := strings.TrimSpace(e.Text); v != "" {
			return v
		}
	}
	return ""
}

func joinPath(base, rel string) string {
	if base == "" || base == "." {
		return path.Clean(rel)
	}
	return path.Join(base, rel)
}

// IsImageMediaType reports whether mediaType names an image (SVG included).
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}
