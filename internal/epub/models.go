package epub

// OPF is the decoded package document of a book.
type OPF struct {
	Metadata Metadata

	// Manifest maps item ids to items; ManifestOrder lists the ids as
	// declared, which is the order assets are extracted in.
	Manifest      map[string]ManifestItem
	ManifestOrder []string

	// Spine is the reading order.
	Spine []SpineItem
}

// Metadata holds the Dublin Core fields of the OPF. Single-valued fields
// carry the first non-blank occurrence.
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
}

// Author is the first creator's name regardless of role.
func (m Metadata) Author() string {
	for _, c := range m.Creators {
		return c.Name
	}
	return ""
}

type Creator struct {
	Name string
	Role string // MARC relator code such as "aut" or "edt"
	Lang string
}

// ManifestItem is one resource of the book. Href is archive-relative but
// keeps the OPF's URL spelling, so it may still be percent-encoded.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem references a manifest item in reading order. Non-linear items
// are still converted.
type SpineItem struct {
	IDRef  string
	Linear bool
}
