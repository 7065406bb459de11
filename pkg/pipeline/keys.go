package pipeline

import (
	"math"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const processedMarker = ".processed."

// ProcessedKey inserts ".processed.<ext>" in place of the original
// extension, keeping the parent path and stem:
// "shots/a.png" + "jpg" → "shots/a.processed.jpg".
func ProcessedKey(sourceKey, ext string) string {
	dir, name := path.Split(sourceKey)
	stem := strings.TrimSuffix(name, path.Ext(name))
	if stem == "" {
		stem = name
	}
	return dir + stem + processedMarker + ext
}

// PointID derives the vector index id from the processed key, falling back
// to the source key and finally to a random id. Equal keys always give the
// same id, so re-ingesting an object overwrites its point.
func PointID(processedKey, sourceKey string) string {
	switch {
	case processedKey != "":
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(processedKey)).String()
	case sourceKey != "":
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceKey)).String()
	default:
		return uuid.NewString()
	}
}

// Title is the display title derived from an object key: its file name.
func Title(key string) string {
	return path.Base(key)
}

// PrefetchWindow is how many neighbours to fetch so that count results
// remain after near-duplicates are dropped.
func PrefetchWindow(count int, multiplier float64) int {
	window := int(math.Ceil(float64(count) * multiplier))
	if window < count {
		return count
	}
	return window
}

// cdnURL fills the {key} placeholder of template with key, escaping each
// path segment.
func cdnURL(template, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.ReplaceAll(template, "{key}", strings.Join(segments, "/"))
}
