package placement

import (
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// Placer runs the planner and composer together
type Placer struct {
	planner  *Planner
	composer *Composer
	log      *logrus.Entry
}

// NewPlacer builds a Placer from the placement config
func NewPlacer(cfg config.PlacementConfig, log *logrus.Entry) *Placer {
	return &Placer{
		planner:  NewPlanner(ThresholdsFromConfig(cfg), log),
		composer: NewComposer(cfg.AppendixTitle, log),
		log:      log,
	}
}

// Place composes images into sections. Invalid images and repeated URLs
// are ignored so no image is placed twice.
func (p *Placer) Place(sections []models.Section, images []models.ImageMetadata) models.ComposeResult {
	usable := make([]models.ImageMetadata, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if !img.IsValid {
			continue
		}
		if _, dup := seen[img.URL]; dup {
			continue
		}
		seen[img.URL] = struct{}{}
		usable = append(usable, img)
	}
	if dropped := len(images) - len(usable); dropped > 0 {
		p.log.Debugf("Ignoring %d invalid or repeated images", dropped)
	}

	placements, unplaced := p.planner.Plan(usable, sections)
	return p.composer.Compose(sections, placements, unplaced)
}

// ComposeImagesIntoDocumentation places images with the default thresholds
// and appendix title.
func ComposeImagesIntoDocumentation(sections []models.Section, images []models.ImageMetadata, log *logrus.Entry) models.ComposeResult {
	return NewPlacer(config.PlacementConfig{}, log).Place(sections, images)
}
