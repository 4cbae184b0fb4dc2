// Package parse canonicalises page URLs and decodes sitemaps for image discovery.
package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// PageKey returns the canonical form of an absolute http(s) page URL, used to
// scrape each page once. Scheme and host are lowercased, default ports and
// the fragment are dropped, query parameters are sorted and a trailing slash
// is removed from non-root paths.
func PageKey(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: page URL '%s': %w", utils.ErrParsing, raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: page URL '%s' must be absolute http(s)", utils.ErrParsing, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: page URL '%s' has no host", utils.ErrParsing, raw)
	}

	u.Host = strings.ToLower(u.Host)
	if host, port, splitErr := net.SplitHostPort(u.Host); splitErr == nil {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.User = nil

	return u.String(), nil
}
