package models

// ImageRef is an image reference discovered while scraping a page.
// Identity is the exact, case-sensitive URL string.
type ImageRef struct {
	URL       string `json:"url" yaml:"url"`
	Alt       string `json:"alt" yaml:"alt"`
	Caption   string `json:"caption,omitempty" yaml:"caption,omitempty"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"` // Page the image was found on
}

// ImageMetadata is the result of one fetch attempt for an ImageRef.
// It is built once and never mutated; a retry produces a new value.
type ImageMetadata struct {
	URL        string     `json:"url"`
	Alt        string     `json:"alt"`
	Caption    string     `json:"caption,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	Width      int        `json:"width,omitempty"`  // 0 = unknown
	Height     int        `json:"height,omitempty"` // 0 = unknown
	Type       string     `json:"type,omitempty"`   // MIME type from Content-Type
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	Hash       string     `json:"hash,omitempty"`
	HashKind   HashKind   `json:"hash_kind,omitempty"`
	Importance Importance `json:"importance"`
	IsValid    bool       `json:"is_valid"`
	Error      string     `json:"error,omitempty"`   // Human-readable failure reason
	Outcome    string     `json:"outcome,omitempty"` // Failure category, see utils.CategorizeError
}

// HasHash reports whether a fingerprint was computed for the image
func (m ImageMetadata) HasHash() bool {
	return m.Hash != ""
}

// Area returns the pixel area, or 0 if either dimension is unknown
func (m ImageMetadata) Area() int {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	return m.Width * m.Height
}

// InvalidMetadata builds a failed result for ref carrying the given reason
func InvalidMetadata(ref ImageRef, reason, outcome string) ImageMetadata {
	return ImageMetadata{
		URL:        ref.URL,
		Alt:        ref.Alt,
		Caption:    ref.Caption,
		SourceURL:  ref.SourceURL,
		Importance: ImportanceLow,
		IsValid:    false,
		Error:      reason,
		Outcome:    outcome,
	}
}
