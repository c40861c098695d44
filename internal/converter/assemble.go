package converter

import "strings"

// ChapterSeparator follows every chapter in the assembled document.
const ChapterSeparator = "\n\n---\n\n"

// Assembler concatenates the document header and chapters in the order
// they are added.
type Assembler struct {
	buf      strings.Builder
	chapters int
}

// WriteHeader appends the frontmatter or title heading.
func (a *Assembler) WriteHeader(header string) {
	a.buf.WriteString(header)
}

// AddChapter appends one converted chapter and its separator.
func (a *Assembler) AddChapter(markdown string) {
	a.buf.WriteString(markdown)
	a.buf.WriteString(ChapterSeparator)
	a.chapters++
}

// Chapters reports how many chapters were added.
func (a *Assembler) Chapters() int {
	return a.chapters
}

func (a *Assembler) String() string {
	return a.buf.String()
}
