package phash

import (
	"math"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"

	"github.com/Sriram-PR/doc-images/pkg/models"
)

// DefaultThreshold is the largest Hamming distance treated as the same image
const DefaultThreshold = 5

// Infinite is the distance between hashes that cannot be compared
const Infinite = math.MaxInt

// HammingDistance counts differing bits between two equal-length hex strings.
// Strings of different length are never similar and return Infinite. A
// position where either side is not a hex digit compares the raw bytes.
func HammingDistance(a, b string) int {
	if len(a) != len(b) {
		return Infinite
	}
	if len(a) == 16 {
		if d, ok := averageHashDistance(a, b); ok {
			return d
		}
	}
	dist := 0
	for i := 0; i < len(a); i++ {
		x, okA := hexNibble(a[i])
		y, okB := hexNibble(b[i])
		if okA && okB {
			dist += bits.OnesCount8(x ^ y)
		} else {
			dist += bits.OnesCount8(a[i] ^ b[i])
		}
	}
	return dist
}

// averageHashDistance compares two 64-bit hashes through goimagehash
func averageHashDistance(a, b string) (int, bool) {
	x, errA := strconv.ParseUint(a, 16, 64)
	y, errB := strconv.ParseUint(b, 16, 64)
	if errA != nil || errB != nil {
		return 0, false
	}
	d, err := goimagehash.NewImageHash(x, goimagehash.AHash).Distance(goimagehash.NewImageHash(y, goimagehash.AHash))
	if err != nil {
		return 0, false
	}
	return d, true
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Similar reports whether two fingerprints identify the same picture.
// Perceptual hashes match within threshold; content digests only when equal;
// hashes of different kinds never match.
func Similar(a, b models.ImageMetadata, threshold int) bool {
	if !a.HasHash() || !b.HasHash() {
		return false
	}
	kind := kindOf(a)
	if kind != kindOf(b) {
		return false
	}
	if kind == models.HashKindContent {
		return a.Hash == b.Hash
	}
	return HammingDistance(a.Hash, b.Hash) <= threshold
}

// kindOf labels hashes supplied without a kind; 16 hex chars is an average hash
func kindOf(m models.ImageMetadata) models.HashKind {
	if m.HashKind == models.HashKindNone && len(m.Hash) == 16 {
		return models.HashKindAverage
	}
	return m.HashKind
}

// Deduplicate keeps the first image of every group of similar images,
// preserving input order. Images without a hash are always kept.
func Deduplicate(images []models.ImageMetadata, threshold int) []models.ImageMetadata {
	kept := make([]models.ImageMetadata, 0, len(images))
	var seen []models.ImageMetadata

	for _, img := range images {
		if !img.HasHash() {
			kept = append(kept, img)
			continue
		}
		duplicate := false
		for _, prev := range seen {
			if Similar(img, prev, threshold) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seen = append(seen, img)
		kept = append(kept, img)
	}
	return kept
}
