package artifacts

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// detectContentType determines an artifact's content type by extension
// first, falling back to content sniffing (spec.md §4.5 "detect content
// type by extension with sniffing fallback").
func detectContentType(path string, data []byte) string {
	if ext := filepath.Ext(path); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return stripParams(byExt)
		}
	}
	return mimetype.Detect(data).String()
}

func stripParams(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return contentType
}

// isTextLike reports whether contentType is eligible for content indexing
// under index_text_files_only (spec.md §4.5): text/* or JSON/YAML.
func isTextLike(contentType string) bool {
	contentType = stripParams(contentType)
	switch {
	case strings.HasPrefix(contentType, "text/"):
		return true
	case strings.Contains(contentType, "json"):
		return true
	case strings.Contains(contentType, "yaml"):
		return true
	default:
		return false
	}
}
