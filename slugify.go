package inkwell

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/google/uuid"
)

// slugTokenLength is the number of hex characters of the random token appended to every slug.
const slugTokenLength = 8

// NewSlug builds the permanent slug for a title: the slugified title, a dash, and the first
// eight hex characters of a fresh random UUID. The random suffix keeps two posts with the same
// title apart without a uniqueness retry loop.
func NewSlug(title string) string {
	return SlugWithToken(title, uuid.New().String())
}

// SlugWithToken joins the slugified title and the first eight characters of token.
func SlugWithToken(title, token string) string {
	if len(token) > slugTokenLength {
		token = token[:slugTokenLength]
	}
	return slug.Make(title) + "-" + token
}

// IsValidSlug returns true if s only contains characters a generated slug can contain.
func IsValidSlug(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// SlugFromPath derives a flat slug from a markdown file path.
// - It trims the `rootPath` from the beginning of the `fullPath` to get the relative path.
// - It trims the extension and a trailing "/index" so a directory name can carry the slug.
// - Each remaining path part is slugified and the parts are joined with dashes.
func SlugFromPath(rootPath, fullPath string) string {
	if fullPath == "" {
		return ""
	}

	relPath := strings.TrimPrefix(fullPath, rootPath)
	relPath = strings.ReplaceAll(relPath, string(os.PathSeparator), "/")
	relPath = strings.TrimSpace(strings.Trim(relPath, "/"))

	if ext := filepath.Ext(relPath); ext != "" {
		relPath = strings.TrimSuffix(relPath, ext)
	}
	relPath = strings.TrimSuffix(relPath, "/index")

	parts := strings.Split(relPath, "/")
	slugged := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := slug.Make(part); s != "" {
			slugged = append(slugged, s)
		}
	}

	return strings.Join(slugged, "-")
}
