// Package objstore provides attachment blob storage addressed by opaque paths.
package objstore

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"
)

// ObjectStore stores raw attachment bytes addressed by opaque path strings of
// the form <ownerID>/<initiativeID>/<timestamp>_<sanitizedFilename>.
type ObjectStore interface {
	// Put stores the content read from r at path. Fails if path already exists
	// (attachments are immutable once created). Returns the number of bytes written.
	Put(ctx context.Context, path string, r io.Reader) (int64, error)
	// Get returns the raw bytes stored at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

var unsafeChars = regexp.MustCompile(`[^\w.\-]+`)

// SanitizeFilename replaces any run of characters outside [A-Za-z0-9_.-] with
// a single underscore.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// BuildPath returns the storage path for a new attachment upload.
func BuildPath(ownerID, initiativeID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", ownerID, initiativeID, now.UnixMilli(), SanitizeFilename(filename))
}
