package converter

import (
	"bytes"
	"fmt"

	"github.com/yuanying/epub2md/internal/epub"
	"gopkg.in/yaml.v3"
)

// frontmatterTags is appended to every frontmatter block.
var frontmatterTags = []string{"epub", "book"}

// BuildFrontmatter renders meta as a YAML frontmatter block framed by ---
// lines and followed by a blank line. Keys without a value are omitted;
// tags are always present.
func BuildFrontmatter(meta epub.Metadata) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	fields := []struct {
		key, value string
	}{
		{"title", meta.Title},
		{"author", meta.Author()},
		{"publisher", meta.Publisher},
		{"language", meta.Language},
		{"date", meta.Date},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.value, Style: yaml.DoubleQuotedStyle},
		)
	}

	tags := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, tag := range frontmatterTags {
		tags.Content = append(tags.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: tag})
	}
	doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "tags"}, tags)

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")
	return buf.String(), nil
}

// TitleHeading returns a level-one heading for the book title, or "" when
// the book has none.
func TitleHeading(meta epub.Metadata) string {
	if meta.Title == "" {
		return ""
	}
	return "# " + meta.Title + "\n\n"
}
