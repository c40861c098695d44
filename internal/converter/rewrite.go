package converter

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"path"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/epub2md/internal/epub"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// linkKind classifies an href for flattening into one Markdown document.
type linkKind int

const (
	linkExternal linkKind = iota // absolute target, kept as-is
	linkFragment                 // rewritten to its #fragment
	linkDissolve                 // cross-file link without fragment, text only
)

// classifyHref decides how a hyperlink is rendered. Every chapter shares one
// id namespace once flattened, so any fragment is addressable regardless of
// the file it was written against; a bare file reference has no target.
func classifyHref(href string) (linkKind, string) {
	if strings.HasPrefix(href, "http") || strings.HasPrefix(href, "mailto:") {
		return linkExternal, href
	}
	if i := strings.Index(href, "#"); i >= 0 {
		return linkFragment, href[i:]
	}
	return linkDissolve, ""
}

// Rewriter converts chapter HTML to Markdown, pointing images into the
// assets directory and links at flat #id anchors.
type Rewriter struct {
	mapping FilenameMapping
	logger  *slog.Logger
	conv    *md.Converter
}

// NewRewriter builds a rewriter around a finished filename mapping.
func NewRewriter(mapping FilenameMapping, logger *slog.Logger) *Rewriter {
	if mapping == nil {
		mapping = FilenameMapping{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	r := &Rewriter{mapping: mapping, logger: logger}

	r.conv = md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		BulletListMarker: "-",
	})
	r.conv.AddRules(
		md.Rule{
			Filter:      []string{"img", "image"},
			Replacement: r.imageRule,
		},
		md.Rule{
			Filter:      []string{"a"},
			Replacement: r.linkRule,
		},
	)
	return r
}

// ConvertChapter converts one chapter document to Markdown.
func (r *Rewriter) ConvertChapter(chapterHTML []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(chapterHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse chapter: %w", err)
	}
	return r.ConvertDocument(doc), nil
}

// ConvertDocument cleans doc, injects anchor markers and converts the body.
// doc is modified in place.
func (r *Rewriter) ConvertDocument(doc *goquery.Document) string {
	CleanChapter(doc)
	InjectAnchors(doc.Selection)

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.TrimSpace(r.conv.Convert(root))
}

// ResolveImage maps an image reference to its on-disk filename. The query
// string is dropped and the percent-decoded basename looked up; a basename
// missing from the mapping is used as-is.
func (r *Rewriter) ResolveImage(ref string) string {
	ref, _, _ = strings.Cut(ref, "?")
	decoded := decodeBasename(path.Base(ref))
	if filename, ok := r.mapping.Lookup(decoded); ok {
		return filename
	}
	return r.fallbackBasename(decoded)
}

func (r *Rewriter) fallbackBasename(decoded string) string {
	r.logger.Debug("image not in asset mapping, using basename", "basename", decoded)
	return decoded
}

func (r *Rewriter) imageRule(content string, selec *goquery.Selection, opt *md.Options) *string {
	src := epub.ImageSource(selec.Get(0))
	if src == "" {
		return md.String("")
	}
	alt, _ := selec.Attr("alt")
	return md.String("![" + altEscaper.Replace(alt) + "](" + AssetsDirName + "/" + r.ResolveImage(src) + ")")
}

func (r *Rewriter) linkRule(content string, selec *goquery.Selection, opt *md.Options) *string {
	href, hasHref := selec.Attr("href")
	if !hasHref {
		if id, _ := selec.Attr("id"); id != "" {
			return md.String(anchorMarkup(id) + content)
		}
		return md.String(content)
	}

	kind, target := classifyHref(strings.TrimSpace(href))
	switch kind {
	case linkExternal, linkFragment:
		return md.String(md.AddSpaceIfNessesary(selec, "["+md.EscapeMultiLine(content)+"]("+target+")"))
	default:
		return md.String(md.AddSpaceIfNessesary(selec, dissolveLink(content)))
	}
}

// altEscaper keeps alt text from closing the image's bracket early.
var altEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`, "\n", " ")

// dissolveLink keeps only the text of a link whose target does not exist
// in the flattened document.
func dissolveLink(content string) string {
	return content
}

func anchorMarkup(id string) string {
	return `<a id="` + html.EscapeString(id) + `"></a>`
}

// Elements whose children are not converted get their marker as a
// preceding sibling instead.
var voidElements = map[atom.Atom]bool{
	atom.Img:   true,
	atom.Image: true,
	atom.Br:    true,
	atom.Hr:    true,
	atom.Input: true,
	atom.Wbr:   true,
}

// InjectAnchors gives every element with an id an empty <a id> first child
// carrying the same id, so the target survives conversion after the outer
// element's attributes are dropped. Anchors without href already are
// markers and are left alone.
func InjectAnchors(sel *goquery.Selection) {
	sel.Find("[id]").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		id, _ := s.Attr("id")
		if id == "" {
			return
		}
		if n.DataAtom == atom.A {
			if _, hasHref := s.Attr("href"); !hasHref {
				return
			}
		}

		marker := &nethtml.Node{
			Type:     nethtml.ElementNode,
			Data:     "a",
			DataAtom: atom.A,
			Attr:     []nethtml.Attribute{{Key: "id", Val: id}},
		}
		if target := preformattedAncestor(n); target != nil && target.Parent != nil {
			target.Parent.InsertBefore(marker, target)
			return
		}
		if voidElements[n.DataAtom] && n.Parent != nil {
			n.Parent.InsertBefore(marker, n)
			return
		}
		n.InsertBefore(marker, n.FirstChild)
	})
}

// preformattedAncestor returns the outermost pre enclosing n (n included).
// Fenced code keeps only text, so markers inside it would be lost.
func preformattedAncestor(n *nethtml.Node) *nethtml.Node {
	var pre *nethtml.Node
	for p := n; p != nil; p = p.Parent {
		if p.Type == nethtml.ElementNode && p.DataAtom == atom.Pre {
			pre = p
		}
	}
	return pre
}
