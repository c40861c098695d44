package converter

import (
	"github.com/PuerkitoBio/goquery"
)

// blockConversions maps HTML5 sectioning tags to block elements the Markdown
// converter separates into paragraphs.
var blockConversions = map[string]string{
	"article":    "div",
	"section":    "div",
	"aside":      "div",
	"nav":        "div",
	"header":     "div",
	"footer":     "div",
	"figure":     "div",
	"figcaption": "p",
}

// nonContentSelector matches elements that carry no readable text.
const nonContentSelector = "head, script, style, link, meta, title, template, noscript"

// CleanChapter strips non-content elements from a chapter and rewrites
// sectioning tags to blocks. ids are left in place for InjectAnchors.
func CleanChapter(doc *goquery.Document) {
	doc.Find(nonContentSelector).Remove()

	// Tags are rewritten in document order so nested conversions are stable.
	doc.Find("article, section, aside, nav, header, footer, figure, figcaption").Each(func(i int, s *goquery.Selection) {
		node := s.Get(0)
		node.Data = blockConversions[node.Data]
		node.DataAtom = 0
	})
}
