// Package avatar validates and stores user avatar images on local disk.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

// AllowedExtensions lists the accepted avatar file extensions, lower case.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif"}

var allowedMIME = []string{"image/png", "image/jpeg", "image/gif"}

// ErrInvalidFileType is returned for empty filenames, disallowed extensions,
// and, when verification is on, content that is not one of the allowed images.
var ErrInvalidFileType = errors.New("invalid file type")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Allowed reports whether filename ends in one of AllowedExtensions, case-insensitively.
func Allowed(filename string) bool {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return false
	}
	return lo.Contains(AllowedExtensions, strings.ToLower(filename[dot+1:]))
}

// Sanitize checks filename against AllowedExtensions and reduces it to a
// flat, ASCII-only name that is safe to join to the upload directory.
func Sanitize(filename string) (string, error) {
	if filename == "" || !Allowed(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, filename)
	}

	clean := strings.ReplaceAll(filename, "\\", "/")
	clean = path.Base(clean)
	clean = strings.Join(strings.Fields(clean), "_")
	clean = unsafeChars.ReplaceAllString(clean, "")
	clean = strings.TrimLeft(clean, "._")

	if clean == "" || !Allowed(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, filename)
	}
	return clean, nil
}

// Store writes avatars into a directory and hands back the URL they are served from.
// Same-name uploads overwrite each other.
type Store struct {
	dir           string
	urlPrefix     string
	verifyContent bool
	log           *slog.Logger
}

// NewStore creates dir if needed. Stored files are addressed as urlPrefix/name.
func NewStore(dir, urlPrefix string, verifyContent bool, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory %s: %w", dir, err)
	}
	return &Store{
		dir:           dir,
		urlPrefix:     strings.TrimRight(urlPrefix, "/"),
		verifyContent: verifyContent,
		log:           log,
	}, nil
}

// Dir returns the directory avatars are written to.
func (s *Store) Dir() string {
	return s.dir
}

// SaveFile writes data under name, which must already be sanitized, and
// returns the URL of the stored file.
func (s *Store) SaveFile(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, name)
	}

	if s.verifyContent {
		detected := mimetype.Detect(data).String()
		if !lo.Contains(allowedMIME, detected) {
			return "", fmt.Errorf("%w: content is %s", ErrInvalidFileType, detected)
		}
	}

	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write avatar %s: %w", name, err)
	}

	s.log.Info("Avatar stored", "file", name, "bytes", len(data), "verified", s.verifyContent)
	return s.urlPrefix + "/" + url.PathEscape(name), nil
}
