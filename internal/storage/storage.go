package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrNotExist is returned when a key has no stored object.
var ErrNotExist = errors.New("storage: object does not exist")

// Storage keeps uploaded media. Keys are slash-separated relative paths such as
// those produced by PhotoKey and VideoKey.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns an absolute URL the object can be fetched from.
	URL(ctx context.Context, key string) (string, error)
}

// PhotoKey is the storage key of a report photo.
func PhotoKey(userID, reportID uint, filename string) string {
	return fmt.Sprintf("photos/user_%d/report_%d/%s", userID, reportID, cleanName(filename))
}

// VideoKey is the storage key of a report video.
func VideoKey(userID, reportID uint, filename string) string {
	return fmt.Sprintf("videos/user_%d/report_%d/%s", userID, reportID, cleanName(filename))
}

// KeyOwner returns the user id encoded in a key built by PhotoKey or VideoKey.
func KeyOwner(key string) (uint, bool) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 || (parts[0] != "photos" && parts[0] != "videos") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "user_"), 10, 32)
	if err != nil || !strings.HasPrefix(parts[1], "user_") || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// cleanName drops any directory part a client sent along with the file name.
func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}

// AlternateName returns filename with a random suffix before its extension,
// for uploads that must not overwrite an existing object of the same name.
func AlternateName(filename string) string {
	name := cleanName(filename)
	ext := path.Ext(name)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return strings.TrimSuffix(name, ext) + "_" + suffix + ext
}

// ImageType maps a file name to the image format used for PDF embedding:
// "JPG", "PNG", "GIF", or "" for anything else.
func ImageType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "JPG"
	case ".png":
		return "PNG"
	case ".gif":
		return "GIF"
	}
	return ""
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
