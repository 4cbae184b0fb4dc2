// Package placement decides which document section each image belongs to and
// inserts the images into the section block lists.
//
// Relevance is a hand-tuned heuristic over word overlap and a fixed visual
// keyword list. There are no learned weights.
package placement

import (
	"strings"
	"unicode/utf8"

	"github.com/Sriram-PR/doc-images/pkg/models"
)

const (
	minSignalWordLen = 4 // image words with fewer runes than this carry no signal
	highImportance   = 1.3
	keywordBonus     = 0.15
)

var visualKeywords = []string{
	"screenshot", "diagram", "architecture", "dashboard", "interface", "ui",
	"example", "visual", "image", "chart", "graph", "illustration",
}

// RawScore returns the unclamped relevance of img to section. It can exceed 1
// because keyword bonuses are additive.
func RawScore(img models.ImageMetadata, section models.Section) float64 {
	imageText := strings.ToLower(img.Alt + " " + img.Caption)
	sectionText := strings.ToLower(section.Title + " " + section.Content)

	sectionWords := make(map[string]struct{})
	for _, w := range strings.Fields(sectionText) {
		sectionWords[w] = struct{}{}
	}

	signal, matches := 0, 0
	for _, w := range strings.Fields(imageText) {
		if utf8.RuneCountInString(w) < minSignalWordLen {
			continue
		}
		signal++
		if _, ok := sectionWords[w]; ok {
			matches++
		}
	}

	var score float64
	if signal > 0 {
		score = float64(matches) / float64(signal)
	}
	if img.Importance == models.ImportanceHigh {
		score *= highImportance
	}
	for _, kw := range visualKeywords {
		if strings.Contains(imageText, kw) || strings.Contains(sectionText, kw) {
			score += keywordBonus
		}
	}
	return score
}

// Score is RawScore clamped to at most 1; it is the placement confidence.
func Score(img models.ImageMetadata, section models.Section) float64 {
	return min(RawScore(img, section), 1.0)
}
