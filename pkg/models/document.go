package models

import "time"

// BlockType identifies the kind of a content block inside a section
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockImage     BlockType = "image"
	BlockSpacer    BlockType = "spacer"
	BlockCode      BlockType = "code"
	BlockList      BlockType = "list"
)

// ImageBlock is the rendering-agnostic record of an image inside a section
type ImageBlock struct {
	URL        string     `json:"url"`
	Alt        string     `json:"alt"`
	Caption    string     `json:"caption,omitempty"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
	Source     string     `json:"source,omitempty"`
	Importance Importance `json:"importance"`
}

// ContentBlock is one element of a section body. Image is set only for BlockImage.
type ContentBlock struct {
	Type  BlockType   `json:"type"`
	Text  string      `json:"text,omitempty"`
	Image *ImageBlock `json:"image,omitempty"`
}

// IsImage reports whether the block carries an image
func (b ContentBlock) IsImage() bool {
	return b.Type == BlockImage && b.Image != nil
}

// NewImageBlock builds an image content block from fetched metadata
func NewImageBlock(m ImageMetadata) ContentBlock {
	return ContentBlock{
		Type: BlockImage,
		Image: &ImageBlock{
			URL:        m.URL,
			Alt:        m.Alt,
			Caption:    m.Caption,
			Width:      m.Width,
			Height:     m.Height,
			Source:     m.SourceURL,
			Importance: m.Importance,
		},
	}
}

// Section is an ordered run of content blocks under a title, owned by the document being assembled
type Section struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks"`
}

// Clone returns a copy whose block slice can be modified without touching s
func (s Section) Clone() Section {
	out := s
	out.Blocks = make([]ContentBlock, len(s.Blocks))
	copy(out.Blocks, s.Blocks)
	return out
}

// Placement is a planned (section, position) assignment for one image.
// It is consumed once by the composer and then discarded.
type Placement struct {
	Image        ImageMetadata `json:"image"`
	SectionID    string        `json:"section_id"`
	SectionTitle string        `json:"section_title"`
	Position     Position      `json:"position"`
	Confidence   float64       `json:"confidence"`
}

// PlacementStats summarises one compose run
type PlacementStats struct {
	TotalImages       int     `json:"total_images"`
	PlacedImages      int     `json:"placed_images"`
	UnplacedImages    int     `json:"unplaced_images"`
	AverageConfidence float64 `json:"average_confidence"`
}

// ComposeResult is what the pipeline hands back to its caller
type ComposeResult struct {
	Sections []Section     `json:"sections"`
	Stats    PlacementStats `json:"stats"`
}

// CacheEntry is a cached metadata record with its insertion time
type CacheEntry struct {
	Metadata   ImageMetadata `json:"metadata"`
	InsertedAt time.Time     `json:"inserted_at"`
}
