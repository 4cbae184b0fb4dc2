package export

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// WriteImages stores each body under dir and returns url -> path relative to dir.
// File names are derived from the URL path, with a short URL hash to keep
// same-named images from different paths apart. The first write error aborts.
func WriteImages(dir string, images map[string][]byte) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating export directory %s: %w", utils.ErrFilesystem, dir, err)
	}

	// Sorted so the write order (and any partial output) is deterministic
	urls := make([]string, 0, len(images))
	for u := range images {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	written := make(map[string]string, len(images))
	for _, u := range urls {
		data := images[u]
		name, err := localFilename(u, http.DetectContentType(data))
		if err != nil {
			return written, fmt.Errorf("naming %s: %w", u, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return written, fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, name, err)
		}
		written[u] = name
	}
	return written, nil
}

// preferredExt maps common image types to the extension used on disk
var preferredExt = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
}

// localFilename builds "<sanitized base>_<8 hex of sha256(url)><ext>".
// The extension follows the sniffed content type, then the URL path.
func localFilename(rawURL, contentType string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrParsing, err)
	}
	urlHash := utils.CalculateStringSHA256(rawURL)

	originalExt := path.Ext(u.Path)
	base := strings.TrimSuffix(path.Base(u.Path), originalExt)
	baseName := utils.SanitizeFilename(base)
	if base == "" || base == "/" || base == "." || baseName == "untitled" {
		baseName = "image_" + urlHash[:12]
	}

	ext := strings.ToLower(originalExt)
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if e, ok := preferredExt[mediaType]; ok {
			ext = e
		}
	}
	if ext == "" {
		return "", fmt.Errorf("cannot determine file extension (content type %q, no URL extension)", contentType)
	}

	return fmt.Sprintf("%s_%s%s", baseName, urlHash[:8], ext), nil
}
