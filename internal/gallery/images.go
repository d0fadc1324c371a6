package gallery

import (
	"path"
	"strings"
)

const placeholderImage = "/placeholder.svg"

// NormalizeImageURL maps stored image references to paths the static file
// server can answer. Inline base64 payloads are not persisted as files and
// fall back to the placeholder.
func NormalizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case isInlineImage(raw):
		return placeholderImage
	case raw == placeholderImage, strings.HasPrefix(raw, "/static/"):
		return raw
	default:
		return "/static/uploads/" + path.Base(raw)
	}
}

func isInlineImage(raw string) bool {
	return strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "base64,") || strings.Contains(raw[:min(len(raw), 64)], ";base64")
}
