package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

const gridSize = 8

// PerceptualHasher computes a 64-bit average hash encoded as 16 hex chars.
type PerceptualHasher struct{}

// Kind implements Hasher
func (PerceptualHasher) Kind() models.HashKind { return models.HashKindAverage }

// Hash decodes data and returns its average hash
func (p PerceptualHasher) Hash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: decode: %w", utils.ErrHashing, err)
	}
	return FormatHash(AverageHash(img)), nil
}

// AverageHash scales img (without cropping) onto an 8x8 grayscale grid and
// hashes the samples with gridBits.
func AverageHash(img image.Image) *goimagehash.ImageHash {
	grid := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.BiLinear.Scale(grid, grid.Bounds(), img, img.Bounds(), draw.Src, nil)
	return goimagehash.NewImageHash(gridBits(grid.Pix), goimagehash.AHash)
}

// gridBits sets bit i when sample i is at or above the mean of all samples.
// Sample 0 is the most significant bit.
func gridBits(samples []uint8) uint64 {
	var sum int
	for _, v := range samples {
		sum += int(v)
	}
	n := len(samples)

	var bits uint64
	for i, v := range samples {
		// v >= sum/n without losing the fraction
		if int(v)*n >= sum {
			bits |= 1 << uint(n-1-i)
		}
	}
	return bits
}

// FormatHash renders an average hash as fixed-width lowercase hex
func FormatHash(h *goimagehash.ImageHash) string {
	return fmt.Sprintf("%016x", h.GetHash())
}
