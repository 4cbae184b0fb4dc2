package process

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// ParseHTML reads an HTML document for ExtractImageRefs
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: html: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// ExtractImageRefs collects <img> references under root, resolving src
// against pageURL. Empty and data: sources and non-http(s) schemes are
// dropped; repeated URLs keep their first occurrence. The caption comes from
// the enclosing <figure>'s <figcaption>, falling back to the title attribute.
func ExtractImageRefs(root *goquery.Selection, pageURL string, log *logrus.Entry) []models.ImageRef {
	base, err := url.Parse(pageURL)
	if err != nil {
		log.Warnf("Cannot parse page URL '%s', relative image sources will be skipped: %v", pageURL, err)
		base = nil
	}

	refs := make([]models.ImageRef, 0)
	seen := make(map[string]struct{})

	root.Find("img").Each(func(_ int, el *goquery.Selection) {
		src := strings.TrimSpace(el.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(el.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}

		imgURL, parseErr := url.Parse(src)
		if parseErr != nil {
			log.Debugf("Image src parse error '%s': %v", src, parseErr)
			return
		}
		if base != nil {
			imgURL = base.ResolveReference(imgURL)
		}
		if imgURL.Scheme != "http" && imgURL.Scheme != "https" {
			return
		}
		imgURL.Fragment = ""

		abs := imgURL.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		refs = append(refs, models.ImageRef{
			URL:       abs,
			Alt:       strings.TrimSpace(el.AttrOr("alt", "")),
			Caption:   extractCaption(el),
			SourceURL: pageURL,
		})
	})

	log.WithFields(logrus.Fields{"page_url": pageURL, "images": len(refs)}).Debug("Extracted image references")
	return refs
}

func extractCaption(img *goquery.Selection) string {
	if figure := img.Closest("figure"); figure.Length() > 0 {
		if caption := strings.Join(strings.Fields(figure.Find("figcaption").First().Text()), " "); caption != "" {
			return caption
		}
	}
	return strings.TrimSpace(img.AttrOr("title", ""))
}
