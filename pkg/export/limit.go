package export

import "github.com/Sriram-PR/doc-images/pkg/models"

// LimitImagesForExport keeps the first maxImages image blocks in document
// order and drops the rest, along with a spacer directly after a dropped
// image. Inputs are not modified. A maxImages below zero disables the limit.
func LimitImagesForExport(sections []models.Section, maxImages int) ([]models.Section, int) {
	out := make([]models.Section, len(sections))
	kept, dropped := 0, 0

	for i, s := range sections {
		blocks := make([]models.ContentBlock, 0, len(s.Blocks))
		skipSpacer := false
		for _, b := range s.Blocks {
			if b.Type == models.BlockSpacer && skipSpacer {
				skipSpacer = false
				continue
			}
			skipSpacer = false
			if b.IsImage() {
				if maxImages >= 0 && kept >= maxImages {
					dropped++
					skipSpacer = true
					continue
				}
				kept++
			}
			blocks = append(blocks, b)
		}
		out[i] = s
		out[i].Blocks = blocks
	}
	return out, dropped
}
