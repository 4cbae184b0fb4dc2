package models

// Importance ranks how much an image is likely to matter to the reader
type Importance string

const (
	ImportanceUnset  Importance = ""       // Zero value = not derived yet
	ImportanceLow    Importance = "low"    // Small or incidental image
	ImportanceMedium Importance = "medium" // Mid-sized content image
	ImportanceHigh   Importance = "high"   // Large image or screenshot/diagram-like alt text
)

// String implements fmt.Stringer for logging
func (i Importance) String() string {
	if i == "" {
		return "unset"
	}
	return string(i)
}

// IsValid returns true if the importance is a known operational value
func (i Importance) IsValid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Position is where inside a section an image block is inserted
type Position string

const (
	PositionTop    Position = "top"
	PositionMiddle Position = "middle"
	PositionBottom Position = "bottom"
)

// String implements fmt.Stringer for logging
func (p Position) String() string {
	if p == "" {
		return "unset"
	}
	return string(p)
}

// IsValid returns true if the position is one of top, middle or bottom
func (p Position) IsValid() bool {
	switch p {
	case PositionTop, PositionMiddle, PositionBottom:
		return true
	}
	return false
}

// Rank orders positions for insertion: top first, then middle, then bottom.
// Unknown positions sort last.
func (p Position) Rank() int {
	switch p {
	case PositionTop:
		return 0
	case PositionMiddle:
		return 1
	case PositionBottom:
		return 2
	}
	return 3
}

// HashKind records which hashing mode produced ImageMetadata.Hash.
// Hashes of different kinds are never comparable.
type HashKind string

const (
	HashKindNone    HashKind = ""      // No hash computed
	HashKindAverage HashKind = "ahash" // 64-bit perceptual average hash, 16 hex chars
	HashKindContent HashKind = "md5"   // Content digest of the raw bytes, 32 hex chars
)

// String implements fmt.Stringer for logging
func (k HashKind) String() string {
	if k == "" {
		return "none"
	}
	return string(k)
}

// IsPerceptual reports whether distances between hashes of this kind reflect visual similarity
func (k HashKind) IsPerceptual() bool {
	return k == HashKindAverage
}
