package process

import (
	"strings"

	"github.com/Sriram-PR/doc-images/pkg/models"
)

const (
	highImportanceArea   = 500_000
	mediumImportanceArea = 200_000
)

var importantAltTerms = []string{"screenshot", "diagram", "architecture", "dashboard"}

// DetermineImportance ranks an image by pixel area and descriptive alt text.
func DetermineImportance(width, height int, alt string) models.Importance {
	area := width * height
	if area > highImportanceArea {
		return models.ImportanceHigh
	}
	lowerAlt := strings.ToLower(alt)
	for _, term := range importantAltTerms {
		if strings.Contains(lowerAlt, term) {
			return models.ImportanceHigh
		}
	}
	if area > mediumImportanceArea {
		return models.ImportanceMedium
	}
	return models.ImportanceLow
}
