package parse

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// Sitemap is a decoded sitemap document. An index yields Children, a URL set yields Pages.
type Sitemap struct {
	Pages    []string
	Children []string
}

// ParseSitemap decodes a sitemap index or URL set. Empty <loc> entries are dropped.
func ParseSitemap(data []byte) (*Sitemap, error) {
	var index XMLSitemapIndex
	errIndex := xml.Unmarshal(data, &index)
	if errIndex == nil {
		out := &Sitemap{}
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				out.Children = append(out.Children, loc)
			}
		}
		return out, nil
	}

	var urlSet XMLURLSet
	if errURLSet := xml.Unmarshal(data, &urlSet); errURLSet != nil {
		return nil, fmt.Errorf("%w: not a sitemap index (%v) or URL set (%v)", utils.ErrParsing, errIndex, errURLSet)
	}
	out := &Sitemap{}
	for _, u := range urlSet.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out.Pages = append(out.Pages, loc)
		}
	}
	return out, nil
}
