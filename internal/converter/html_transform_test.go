package converter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseTestHTML(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return doc
}

func TestCleanChapter_RemovesNonContent(t *testing.T) {
	doc := parseTestHTML(`<html><head><title>T</title><link rel="stylesheet" href="s.css"/><style>p{}</style></head>
<body><script>alert(1)</script><p>text</p><template><p>hidden</p></template><noscript>js off</noscript></body></html>`)
	CleanChapter(doc)

	for _, sel := range []string{"head", "title", "link", "style", "script", "template", "noscript"} {
		if doc.Find(sel).Length() != 0 {
			t.Errorf("expected <%s> to be removed", sel)
		}
	}
	if got := strings.TrimSpace(doc.Find("body").Text()); got != "text" {
		t.Errorf("body text = %q, want %q", got, "text")
	}
}

func TestCleanChapter_SectioningToDiv(t *testing.T) {
	tags := []string{"article", "section", "aside", "nav", "header", "footer", "figure"}
	for _, tag := range tags {
		t.Run(tag, func(t *testing.T) {
			doc := parseTestHTML(`<html><body><` + tag + ` id="x">content</` + tag + `></body></html>`)
			CleanChapter(doc)
			if doc.Find(tag).Length() != 0 {
				t.Fatalf("expected <%s> to be converted", tag)
			}
			sel := doc.Find("div#x")
			if sel.Length() == 0 {
				t.Fatalf("expected <%s> to become <div> keeping its id", tag)
			}
			if sel.Text() != "content" {
				t.Fatalf("content mismatch: got %q", sel.Text())
			}
		})
	}
}

func TestCleanChapter_FigcaptionToP(t *testing.T) {
	doc := parseTestHTML(`<html><body><figure><img src="a.png"/><figcaption>caption text</figcaption></figure></body></html>`)
	CleanChapter(doc)
	sel := doc.Find("div > p")
	if sel.Length() == 0 {
		t.Fatal("expected <figcaption> to be converted to <p> inside the figure block")
	}
	if sel.Text() != "caption text" {
		t.Fatalf("content mismatch: got %q", sel.Text())
	}
	if doc.Find("div > img").Length() != 1 {
		t.Fatal("expected figure image to be kept")
	}
}

func TestCleanChapter_Nested(t *testing.T) {
	doc := parseTestHTML(`<html><body><section><article><p>deep</p></article></section></body></html>`)
	CleanChapter(doc)
	if got := doc.Find("div > div > p").Text(); got != "deep" {
		t.Fatalf("nested conversion: got %q", got)
	}
}
