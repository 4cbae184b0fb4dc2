package process

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Sriram-PR/doc-images/pkg/models"
)

// Elements that never carry section text. Images are removed because they
// are placed back by the pipeline.
const nonContentSelector = "script, style, noscript, nav, header, footer, aside, img, picture, svg, figure"

// contentSelectors locate the main content of pages built by common
// documentation generators. Order matters: more specific first.
var contentSelectors = []string{
	"article[class*='theme-doc'], .theme-doc-markdown",     // Docusaurus
	"article.md-content__inner, .md-content article",       // MkDocs Material
	".rst-content [role='main'], .rst-content",             // ReadTheDocs
	"div.document div.body, article.bd-article",            // Sphinx
	"section.normal.markdown-section, .page-inner section", // GitBook
	"main article, main, article, [role='main']",
}

// SectionsFromMarkdown splits a markdown document into sections, one per
// heading of any level. Text before the first heading becomes an untitled
// section with ID "intro". Section IDs are slugs of the title, suffixed
// with -2, -3, ... when a title repeats.
func SectionsFromMarkdown(markdown []byte) []models.Section {
	doc := goldmark.DefaultParser().Parse(text.NewReader(markdown))

	var sections []models.Section
	current := models.Section{ID: "intro"}
	flush := func() {
		if current.Title == "" && len(current.Blocks) == 0 {
			return
		}
		current.Content = sectionContent(current.Blocks)
		sections = append(sections, current)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			current = models.Section{Title: nodeText(node, markdown)}
		case *ast.Paragraph, *ast.Blockquote:
			if t := nodeText(node, markdown); t != "" {
				current.Blocks = append(current.Blocks, models.ContentBlock{Type: models.BlockParagraph, Text: t})
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			current.Blocks = append(current.Blocks, models.ContentBlock{Type: models.BlockCode, Text: linesText(node, markdown)})
		case *ast.List:
			var items []string
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := nodeText(item, markdown); t != "" {
					items = append(items, t)
				}
			}
			if len(items) > 0 {
				current.Blocks = append(current.Blocks, models.ContentBlock{Type: models.BlockList, Text: strings.Join(items, "\n")})
			}
		}
	}
	flush()

	return AppendSections(nil, sections)
}

// SectionsFromHTML converts the main content of an HTML page to markdown and
// splits it with SectionsFromMarkdown.
func SectionsFromHTML(doc *goquery.Document, pageURL string) []models.Section {
	content := contentRoot(doc)
	if content.Length() == 0 {
		return nil
	}
	content = content.Clone()
	content.Find(nonContentSelector).Remove()

	domain := ""
	if u, err := url.Parse(pageURL); err == nil {
		domain = u.Host
	}
	converter := md.NewConverter(domain, true, nil)
	return SectionsFromMarkdown([]byte(converter.Convert(content)))
}

// contentRoot returns the first match of contentSelectors, falling back to the body
func contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return doc.Find("body")
}

// AppendSections appends next to into, renaming IDs that collide with an
// earlier section. Empty IDs are derived from the title.
func AppendSections(into, next []models.Section) []models.Section {
	used := make(map[string]struct{}, len(into)+len(next))
	for _, s := range into {
		used[s.ID] = struct{}{}
	}
	for _, s := range next {
		base := s.ID
		if base == "" {
			base = slugify(s.Title)
		}
		id := base
		for i := 2; ; i++ {
			if _, taken := used[id]; !taken {
				break
			}
			id = fmt.Sprintf("%s-%d", base, i)
		}
		used[id] = struct{}{}
		s.ID = id
		into = append(into, s)
	}
	return into
}

// nodeText concatenates the inline text under n. Image alt text is skipped.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := child.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(c.Value)
		case *ast.Paragraph, *ast.TextBlock:
			// Keep adjacent blocks of a list item or quote apart
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}

func linesText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func sectionContent(blocks []models.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 64 {
			break
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}
