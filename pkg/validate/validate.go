// Package validate holds the cheap pre-fetch filters that reject logos, icons,
// tracking pixels and other decorative images before any network call, and the
// dimension bounds applied once an image has been probed.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// minURLLength rejects obviously truncated or placeholder references
const minURLLength = 10

// Skip reasons returned by SkipReason
const (
	ReasonDataURI          = "data_uri"
	ReasonTooShort         = "url_too_short"
	ReasonScheme           = "unsupported_scheme"
	ReasonTracking         = "tracking_url"
	ReasonURLPattern       = "url_pattern"
	ReasonAltPattern       = "alt_pattern"
	ReasonDomainDisallowed = "domain_disallowed"
	ReasonDomainNotAllowed = "domain_not_allowed"
	ReasonExtraPattern     = "extra_pattern"
)

var urlBlocklist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)logo`),
	regexp.MustCompile(`(?i)icon`),
	regexp.MustCompile(`(?i)avatar`),
	regexp.MustCompile(`(?i)favicon`),
	regexp.MustCompile(`(?i)sprite`),
	regexp.MustCompile(`(?i)badge`),
	regexp.MustCompile(`(?i)button`),
	regexp.MustCompile(`(?i)banner`),
	regexp.MustCompile(`(?i)advertisement`),
	regexp.MustCompile(`(?i)(^|[/_.-])ads?([/_.-]|$)`),
	regexp.MustCompile(`(?i)social`),
	regexp.MustCompile(`(?i)emoji`),
	regexp.MustCompile(`(?i)(^|[^0-9])[0-9]{1,2}x[0-9]{1,2}\.(png|gif|jpe?g|webp)`), // 1x1.gif style tracking pixels
}

var altBlocklist = regexp.MustCompile(`(?i)logo|icon|avatar|emoji|badge`)

var trackingMarkers = []string{"track", "pixel", "analytics"}

// ShouldSkip applies the built-in blocklists with no domain or extra-pattern rules.
func ShouldSkip(rawURL, alt string) bool {
	return builtinSkipReason(rawURL, alt) != ""
}

// IsValidSize checks width/height against the default bounds.
func IsValidSize(width, height int) bool {
	return DefaultBounds().Contains(width, height)
}

func builtinSkipReason(rawURL, alt string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return ReasonDataURI
	case len(rawURL) < minURLLength:
		return ReasonTooShort
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ReasonScheme
	}
	for _, marker := range trackingMarkers {
		if strings.Contains(lower, marker) {
			return ReasonTracking
		}
	}
	for _, re := range urlBlocklist {
		if re.MatchString(rawURL) {
			return ReasonURLPattern
		}
	}
	if alt != "" && altBlocklist.MatchString(alt) {
		return ReasonAltPattern
	}
	return ""
}

// Bounds is an inclusive width/height range
type Bounds struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// DefaultBounds returns 200x150 to 4000x4000
func DefaultBounds() Bounds {
	return Bounds{
		MinWidth:  config.DefaultMinWidth,
		MinHeight: config.DefaultMinHeight,
		MaxWidth:  config.DefaultMaxWidth,
		MaxHeight: config.DefaultMaxHeight,
	}
}

// Contains reports whether both dimensions are known (positive) and inside the bounds.
func (b Bounds) Contains(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return width >= b.MinWidth && height >= b.MinHeight &&
		width <= b.MaxWidth && height <= b.MaxHeight
}

// Describe explains why a size is out of bounds, for ImageMetadata.Error
func (b Bounds) Describe(width, height int) string {
	return fmt.Sprintf("Image dimensions %dx%d outside allowed range %dx%d to %dx%d",
		width, height, b.MinWidth, b.MinHeight, b.MaxWidth, b.MaxHeight)
}

// Validator combines the built-in blocklists with configured domain and regex rules.
type Validator struct {
	bounds     Bounds
	allowed    []string
	disallowed []string
	extra      []*regexp.Regexp
}

// New builds a Validator from the validation section of the config
func New(cfg config.ValidationConfig) (*Validator, error) {
	extra, err := utils.CompileRegexPatterns(cfg.ExtraSkipPatterns)
	if err != nil {
		return nil, err
	}
	b := Bounds{
		MinWidth:  cfg.MinWidth,
		MinHeight: cfg.MinHeight,
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
	}
	if b == (Bounds{}) {
		b = DefaultBounds()
	}
	return &Validator{
		bounds:     b,
		allowed:    cfg.AllowedImageDomains,
		disallowed: cfg.DisallowedImageDomains,
		extra:      extra,
	}, nil
}

// Bounds returns the dimension bounds in effect
func (v *Validator) Bounds() Bounds {
	return v.bounds
}

// IsValidSize checks width/height against the configured bounds
func (v *Validator) IsValidSize(width, height int) bool {
	return v.bounds.Contains(width, height)
}

// ShouldSkip reports whether the reference should be dropped before fetching.
func (v *Validator) ShouldSkip(rawURL, alt string) bool {
	return v.SkipReason(rawURL, alt) != ""
}

// SkipReason returns the first rule that rejects the reference, or "" if it passes.
func (v *Validator) SkipReason(rawURL, alt string) string {
	if reason := builtinSkipReason(rawURL, alt); reason != "" {
		return reason
	}

	if len(v.allowed) > 0 || len(v.disallowed) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return ReasonScheme
		}
		host := u.Hostname()
		for _, pattern := range v.disallowed {
			if MatchDomain(host, pattern) {
				return ReasonDomainDisallowed
			}
		}
		if len(v.allowed) > 0 {
			allowed := false
			for _, pattern := range v.allowed {
				if MatchDomain(host, pattern) {
					allowed = true
					break
				}
			}
			if !allowed {
				return ReasonDomainNotAllowed
			}
		}
	}

	for _, re := range v.extra {
		if re.MatchString(rawURL) {
			return ReasonExtraPattern
		}
	}
	return ""
}

// MatchDomain checks a host against an exact pattern or a "*.example.com" wildcard,
// which also matches the bare domain.
func MatchDomain(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)

	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix) || host == suffix[1:]
	}
	return host == pattern
}
