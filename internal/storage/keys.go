package storage

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// Category is the media family segment of a storage key.
type Category string

const (
	CategoryImages     Category = "images"
	CategoryVideos     Category = "videos"
	CategoryEdited     Category = "edited"
	CategoryUpscaled   Category = "upscaled"
	CategoryThumbnails Category = "thumbnails"
)

// KeyPrefix is the first segment of every canonical key.
const KeyPrefix = "generated"

const thumbnailSuffix = "_thumb"

var categories = map[Category]struct{}{
	CategoryImages:     {},
	CategoryVideos:     {},
	CategoryEdited:     {},
	CategoryUpscaled:   {},
	CategoryThumbnails: {},
}

// ParseCategory validates a category name against the whitelist.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidCategory, s)
	}
	return c, nil
}

// CategoryForKind returns the storage category of a job kind's primary output.
func CategoryForKind(kind domain.JobKind) Category {
	switch kind {
	case domain.JobKindUpscale:
		return CategoryUpscaled
	case domain.JobKindEdit:
		return CategoryEdited
	case domain.JobKindVideo:
		return CategoryVideos
	}
	return CategoryImages
}

// BuildKey returns generated/{ownerID}/{category}/{filename}.
func BuildKey(ownerID string, category Category, filename string) (string, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return "", err
	}
	if !validSegment(ownerID) {
		return "", fmt.Errorf("%w: owner id %q", domain.ErrInvalidKey, ownerID)
	}
	if !validSegment(filename) {
		return "", fmt.Errorf("%w: filename %q", domain.ErrInvalidKey, filename)
	}
	return strings.Join([]string{KeyPrefix, ownerID, string(category), filename}, "/"), nil
}

// ItemFilename names the index-th output of a job.
func ItemFilename(jobID string, index int, ext string) string {
	return fmt.Sprintf("%s_%d%s", jobID, index, normalizeExt(ext))
}

// ThumbnailFilename names the thumbnail derived from an item id.
func ThumbnailFilename(derivedID string) string {
	return derivedID + thumbnailSuffix + ".webp"
}

// KeyInfo is what a storage key reveals about its object.
type KeyInfo struct {
	OwnerID     string
	Category    Category
	Filename    string
	DerivedID   string
	Extension   string
	IsThumbnail bool
	Legacy      bool
}

// ParseKey recovers the components of a canonical key. Three legacy shapes
// are accepted: {ownerID}/{category}/{filename}, generated/{ownerID}/{filename}
// and {ownerID}/{filename}. The last two carry no category; it is inferred from
// the filename.
func ParseKey(key string) (KeyInfo, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	parts := strings.Split(key, "/")
	for _, p := range parts {
		if !validSegment(p) {
			return KeyInfo{}, fmt.Errorf("%w: %q", domain.ErrInvalidKey, key)
		}
	}

	var info KeyInfo
	switch {
	case len(parts) == 4 && parts[0] == KeyPrefix:
		c, err := ParseCategory(parts[2])
		if err != nil {
			return KeyInfo{}, err
		}
		info = KeyInfo{OwnerID: parts[1], Category: c, Filename: parts[3]}
	case len(parts) == 3 && parts[0] != KeyPrefix:
		c, err := ParseCategory(parts[1])
		if err != nil {
			return KeyInfo{}, err
		}
		info = KeyInfo{OwnerID: parts[0], Category: c, Filename: parts[2], Legacy: true}
	case len(parts) == 3 && parts[0] == KeyPrefix:
		info = KeyInfo{OwnerID: parts[1], Filename: parts[2], Legacy: true}
		info.Category = inferCategory(parts[2])
	case len(parts) == 2 && parts[0] != KeyPrefix:
		info = KeyInfo{OwnerID: parts[0], Filename: parts[1], Legacy: true}
		info.Category = inferCategory(parts[1])
	default:
		return KeyInfo{}, fmt.Errorf("%w: %q", domain.ErrInvalidKey, key)
	}

	info.Extension = path.Ext(info.Filename)
	base := strings.TrimSuffix(info.Filename, info.Extension)
	// "_thumb" names outside the thumbnails category are ordinary outputs
	if info.Category == CategoryThumbnails {
		info.IsThumbnail = true
		base = strings.TrimSuffix(base, thumbnailSuffix)
	}
	info.DerivedID = base
	return info, nil
}

// ThumbnailKey derives the thumbnail key of an object key.
func ThumbnailKey(key string) (string, error) {
	info, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return BuildKey(info.OwnerID, CategoryThumbnails, ThumbnailFilename(info.DerivedID))
}

// MigrateKey rewrites a legacy key into the canonical shape.
func MigrateKey(key string) (string, error) {
	info, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return BuildKey(info.OwnerID, info.Category, info.Filename)
}

// KeyFromURL extracts the canonical key from a public object URL.
func KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	p := u.Path
	idx := strings.Index(p, "/"+KeyPrefix+"/")
	if idx < 0 {
		return "", fmt.Errorf("%w: no %s segment in %q", domain.ErrInvalidKey, KeyPrefix, raw)
	}
	key := p[idx+1:]
	if _, err := ParseKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ExtensionForContentType maps a media type to a file extension.
func ExtensionForContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	}
	return ".bin"
}

func inferCategory(filename string) Category {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp4", ".webm", ".mov":
		return CategoryVideos
	}
	if strings.Contains(filename, thumbnailSuffix+".") {
		return CategoryThumbnails
	}
	return CategoryImages
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.TrimSpace(s) != s {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
