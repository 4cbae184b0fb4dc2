package phash

import (
	"fmt"

	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// ContentHasher digests raw bytes; only byte-identical images share a hash.
type ContentHasher struct{}

// Kind implements Hasher
func (ContentHasher) Kind() models.HashKind { return models.HashKindContent }

// Hash returns the MD5 of data as 32 hex chars
func (ContentHasher) Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", utils.ErrHashing)
	}
	return utils.CalculateBytesMD5(data), nil
}
