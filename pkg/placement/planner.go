package placement

import (
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// Thresholds controls when an image is placed and where
type Thresholds struct {
	Confidence float64 // minimum best score to place at all
	Top        float64
	Middle     float64
}

// DefaultThresholds returns 0.2 / 0.6 / 0.3
func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence: config.DefaultConfidenceThreshold,
		Top:        config.DefaultTopThreshold,
		Middle:     config.DefaultMiddleThreshold,
	}
}

// ThresholdsFromConfig reads the placement section of the config. Unset
// thresholds fall back to the defaults; an explicit 0 is kept.
func ThresholdsFromConfig(cfg config.PlacementConfig) Thresholds {
	confidence, top, middle := config.GetEffectiveThresholds(cfg)
	return Thresholds{Confidence: confidence, Top: top, Middle: middle}
}

// PositionFor maps a confidence to a position within the section
func (t Thresholds) PositionFor(score float64) models.Position {
	switch {
	case score >= t.Top:
		return models.PositionTop
	case score >= t.Middle:
		return models.PositionMiddle
	default:
		return models.PositionBottom
	}
}

// Planner assigns each image to its best-scoring section independently of
// the other images. Several images may land at the top of one section.
type Planner struct {
	thresholds Thresholds
	log        *logrus.Entry
}

// NewPlanner creates a Planner
func NewPlanner(t Thresholds, log *logrus.Entry) *Planner {
	return &Planner{thresholds: t, log: log}
}

// PlanImage picks the best section for img. ok is false when no section
// reaches the confidence threshold, including when there are no sections.
func (p *Planner) PlanImage(img models.ImageMetadata, sections []models.Section) (placement models.Placement, ok bool) {
	bestIdx := -1
	bestScore := 0.0
	for i, section := range sections {
		// strict: ties keep the earlier section
		if s := Score(img, section); bestIdx < 0 || s > bestScore {
			bestIdx, bestScore = i, s
		}
	}

	if bestIdx < 0 || bestScore < p.thresholds.Confidence {
		p.log.WithFields(logrus.Fields{"img_url": img.URL, "best_score": bestScore}).Debug("No section reached confidence threshold")
		return models.Placement{}, false
	}

	best := sections[bestIdx]
	placement = models.Placement{
		Image:        img,
		SectionID:    best.ID,
		SectionTitle: best.Title,
		Position:     p.thresholds.PositionFor(bestScore),
		Confidence:   bestScore,
	}
	p.log.WithFields(logrus.Fields{
		"img_url":    img.URL,
		"section_id": best.ID,
		"position":   placement.Position,
		"confidence": bestScore,
	}).Debug("Planned image placement")
	return placement, true
}

// Plan runs PlanImage over every image, splitting them into placements and
// an unplaced bucket. Input order is preserved in both.
func (p *Planner) Plan(images []models.ImageMetadata, sections []models.Section) (placements []models.Placement, unplaced []models.ImageMetadata) {
	for _, img := range images {
		if pl, ok := p.PlanImage(img, sections); ok {
			placements = append(placements, pl)
		} else {
			unplaced = append(unplaced, img)
		}
	}
	return placements, unplaced
}
