package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// CalculateBytesMD5 computes the hex MD5 digest of data.
// Used for content fingerprints, not for anything security related.
func CalculateBytesMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// CalculateStringSHA256 computes the SHA-256 hash of a string.
func CalculateStringSHA256(content string) string {
	hash := sha256.New()
	hash.Write([]byte(content))
	return hex.EncodeToString(hash.Sum(nil))
}
