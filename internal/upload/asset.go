// Package upload validates and stores user-supplied images.
package upload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"
)

// DefaultMaxSize is the size limit applied when callers pass a non-positive maximum.
const DefaultMaxSize int64 = 10 << 20

// UploadedAsset describes a stored, verified upload.
type UploadedAsset struct {
	OriginalName string    `json:"original_name"`
	DetectedMIME string    `json:"detected_mime"`
	Extension    string    `json:"extension"`
	SizeBytes    int64     `json:"size_bytes"`
	StoragePath  string    `json:"storage_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// allowedTypes maps each accepted sniffed MIME type to its canonical extension.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// contentTypes is the reverse of allowedTypes for storage metadata.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// normalizeExtension lower-cases ext and folds jpeg into jpg.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// declaredExtension extracts the extension of a client-supplied name.
func declaredExtension(name string) string {
	return normalizeExtension(path.Ext(name))
}

// generatePath builds "{2 hex}/{32 hex}_{unix nanos}.{ext}" from random. The declared file name
// never contributes.
func generatePath(random io.Reader, now time.Time, ext string) (string, error) {
	var buf [17]byte
	if _, err := io.ReadFull(random, buf[:]); err != nil {
		return "", fmt.Errorf("upload: random token: %w", err)
	}
	return fmt.Sprintf("%02x/%s_%d.%s", buf[0], hex.EncodeToString(buf[1:]), now.UnixNano(), ext), nil
}

var defaultRandom io.Reader = rand.Reader

const maxOriginalNameLen = 255

// cleanOriginalName reduces a client-supplied name to a display-safe base name.
func cleanOriginalName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	if runes := []rune(name); len(runes) > maxOriginalNameLen {
		name = string(runes[len(runes)-maxOriginalNameLen:])
	}
	return name
}
