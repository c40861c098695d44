// Developer tool for inspecting how a book will be converted.
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file> (<spine-id> ...)
//
// It prints:
// - Archive members
// - Metadata and the frontmatter that would be written
// - Manifest items in document order, with their properties
// - The spine (reading order), marking non-linear items
// - The asset filenames the allocator would assign
// - Markdown for each spine id given on the command line
package main

import (
	"fmt"
	"log"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/yuanying/epub2md/internal/converter"
	"github.com/yuanying/epub2md/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file> (<spine-id> ...)")
		os.Exit(1)
	}

	epubPath := os.Args[1]
	chapterIDs := os.Args[2:]

	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	reader, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	members := make([]string, 0, len(reader.Files()))
	for name := range reader.Files() {
		members = append(members, name)
	}
	reader.Close()
	sort.Strings(members)
	fmt.Printf("Archive (%d members, OPF %s):\n", len(members), reader.OPFPath())
	for _, name := range members {
		fmt.Printf("  %s\n", name)
	}

	book, err := epub.OpenBook(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer book.Close()
	opf := book.OPF()

	fm, err := converter.BuildFrontmatter(book.Metadata())
	if err != nil {
		log.Fatalf("Failed to build frontmatter: %v", err)
	}
	fmt.Printf("✓ EPUB opened successfully\n\nFrontmatter:\n%s", fm)

	meta := book.Metadata()
	fmt.Println("Metadata:")
	fmt.Printf("  Identifier:  %s\n", meta.Identifier)
	fmt.Printf("  Description: %s\n", meta.Description)
	fmt.Printf("  Subjects:    %s\n", strings.Join(meta.Subjects, ", "))
	fmt.Printf("  Rights:      %s\n", meta.Rights)
	for _, c := range meta.Creators {
		fmt.Printf("  Creator:     %s (role %q, lang %q)\n", c.Name, c.Role, c.Lang)
	}
	fmt.Println()

	fmt.Printf("Manifest (%d items):\n", len(opf.ManifestOrder))
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		fmt.Printf("  - %-20s %-28s %s", id, item.MediaType, item.Href)
		if len(item.Properties) > 0 {
			fmt.Printf(" [%s]", strings.Join(item.Properties, " "))
		}
		fmt.Println()
	}

	fmt.Printf("\nSpine (%d items):\n", len(opf.Spine))
	for i, s := range opf.Spine {
		linear := ""
		if !s.Linear {
			linear = " (non-linear)"
		}
		fmt.Printf("  %3d. %s%s\n", i+1, s.IDRef, linear)
	}

	// 実際の変換と同じ順序で割り当てたファイル名を表示する
	plan, mapping := converter.PlanAssets(opf)
	fmt.Printf("\nAssets (%d images):\n", len(plan))
	for _, a := range plan {
		marker := ""
		if a.Filename != path.Base(a.Href) {
			marker = " (renamed)"
		}
		fmt.Printf("  - %s -> %s/%s%s\n", a.Href, converter.AssetsDirName, a.Filename, marker)
	}

	rw := converter.NewRewriter(mapping, nil)
	for _, id := range chapterIDs {
		data, err := book.ReadItem(id)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", id, err)
		}
		md, err := rw.ConvertChapter(data)
		if err != nil {
			log.Fatalf("Failed to convert %s: %v", id, err)
		}
		fmt.Printf("\n--- %s ---\n%s\n", id, md)
	}

	fmt.Println("\n✓ Done")
}
