package placement

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

const appendixIntro = "The following screenshots could not be matched to a specific section with enough confidence."

// Composer inserts planned images into copies of the sections
type Composer struct {
	appendixTitle string
	newID         func() string
	log           *logrus.Entry
}

// NewComposer creates a Composer. An empty title uses "Screenshots".
func NewComposer(appendixTitle string, log *logrus.Entry) *Composer {
	if appendixTitle == "" {
		appendixTitle = config.DefaultAppendixTitle
	}
	return &Composer{
		appendixTitle: appendixTitle,
		newID:         uuid.NewString,
		log:           log,
	}
}

// Compose returns new sections with the placements applied and, when any
// image is unplaced, a trailing appendix section holding them. The input
// sections are not modified.
//
// Within a section placements apply in (position rank, -confidence) order:
// top prepends, bottom appends, middle inserts at len/2 of the block list as
// it stands at that moment.
func (c *Composer) Compose(sections []models.Section, placements []models.Placement, unplaced []models.ImageMetadata) models.ComposeResult {
	bySection := make(map[string][]models.Placement)
	for _, pl := range placements {
		bySection[pl.SectionID] = append(bySection[pl.SectionID], pl)
	}

	out := make([]models.Section, 0, len(sections)+1)
	applied := make([]models.Placement, 0, len(placements))
	for _, section := range sections {
		group, ok := bySection[section.ID]
		if !ok {
			out = append(out, section.Clone())
			continue
		}
		// Duplicate section IDs: the first one takes the group
		delete(bySection, section.ID)

		sort.SliceStable(group, func(i, j int) bool {
			ri, rj := group[i].Position.Rank(), group[j].Position.Rank()
			if ri != rj {
				return ri < rj
			}
			return group[i].Confidence > group[j].Confidence
		})

		composed := section.Clone()
		for _, pl := range group {
			composed.Blocks = insertBlock(composed.Blocks, pl.Position, models.NewImageBlock(pl.Image))
			metrics.Placements.WithLabelValues(string(pl.Position)).Inc()
		}
		applied = append(applied, group...)
		out = append(out, composed)
	}

	// Placements naming a section that is not in the document go to the appendix
	leftover := append([]models.ImageMetadata(nil), unplaced...)
	for _, pl := range placements {
		if _, missing := bySection[pl.SectionID]; missing {
			c.log.WithFields(logrus.Fields{"img_url": pl.Image.URL, "section_id": pl.SectionID}).Warn("Placement targets unknown section, moving to appendix")
			leftover = append(leftover, pl.Image)
		}
	}

	if len(leftover) > 0 {
		out = append(out, c.appendix(leftover))
		metrics.Placements.WithLabelValues("unplaced").Add(float64(len(leftover)))
	}

	stats := models.PlacementStats{
		TotalImages:    len(applied) + len(leftover),
		PlacedImages:   len(applied),
		UnplacedImages: len(leftover),
	}
	if len(applied) > 0 {
		var sum float64
		for _, pl := range applied {
			sum += pl.Confidence
		}
		stats.AverageConfidence = sum / float64(len(applied))
	}

	c.log.WithFields(logrus.Fields{
		"total":          stats.TotalImages,
		"placed":         stats.PlacedImages,
		"unplaced":       stats.UnplacedImages,
		"avg_confidence": stats.AverageConfidence,
	}).Info("Composed images into sections")

	return models.ComposeResult{Sections: out, Stats: stats}
}

func insertBlock(blocks []models.ContentBlock, pos models.Position, block models.ContentBlock) []models.ContentBlock {
	switch pos {
	case models.PositionTop:
		return append([]models.ContentBlock{block}, blocks...)
	case models.PositionMiddle:
		mid := len(blocks) / 2
		blocks = append(blocks, models.ContentBlock{})
		copy(blocks[mid+1:], blocks[mid:])
		blocks[mid] = block
		return blocks
	default:
		return append(blocks, block)
	}
}

func (c *Composer) appendix(images []models.ImageMetadata) models.Section {
	blocks := make([]models.ContentBlock, 0, 1+2*len(images))
	blocks = append(blocks, models.ContentBlock{Type: models.BlockParagraph, Text: appendixIntro})
	for _, img := range images {
		blocks = append(blocks, models.NewImageBlock(img), models.ContentBlock{Type: models.BlockSpacer})
	}
	return models.Section{
		ID:     c.newID(),
		Title:  c.appendixTitle,
		Blocks: blocks,
	}
}
