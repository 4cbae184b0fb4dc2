package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 100

var (
	invalidFilenameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	consecutiveUnderscores = regexp.MustCompile(`_+`)
)

// SanitizeFilename makes name safe as a single path component on Windows and
// Unix. The result is at most 100 bytes, never splits a UTF-8 sequence and is
// "untitled" when nothing usable remains.
func SanitizeFilename(name string) string {
	clean := invalidFilenameChars.ReplaceAllString(name, "_")
	clean = strings.Trim(consecutiveUnderscores.ReplaceAllString(clean, "_"), "_ ")

	if len(clean) > maxFilenameLength {
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = strings.Trim(clean[:cut], "_ ")
	}
	if clean == "" {
		return "untitled"
	}
	return clean
}
