// Package phash fingerprints image bytes and removes near-duplicates.
//
// Two strategies exist behind the Hasher interface: a perceptual average hash
// over an 8x8 grayscale grid, and an MD5 content digest used when pixel
// decoding is unavailable. Hashes carry their kind so the two are never compared.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// Hasher computes a fingerprint of raw image bytes
type Hasher interface {
	Hash(data []byte) (string, error)
	Kind() models.HashKind
}

// NewHasher selects a Hasher for the configured mode. In auto mode the
// perceptual hasher is used only if it can hash a probe image in this build.
func NewHasher(mode string, log *logrus.Entry) (Hasher, error) {
	switch mode {
	case config.HashModePerceptual:
		return PerceptualHasher{}, nil
	case config.HashModeContent:
		return ContentHasher{}, nil
	case config.HashModeAuto, "":
		if err := probePerceptual(PerceptualHasher{}); err != nil {
			log.WithError(err).Warn("Perceptual hashing unavailable, falling back to content hashing")
			return ContentHasher{}, nil
		}
		log.Debug("Perceptual hashing available")
		return PerceptualHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hashing mode %q", mode)
	}
}

// probePerceptual round-trips a tiny generated PNG through the decoder and hasher
func probePerceptual(h Hasher) error {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	_, err := h.Hash(buf.Bytes())
	return err
}
