package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/google/uuid"
)

const uploadsPrefix = "/uploads/"

var imageExtensions = map[string]string{
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// ImageStore keeps uploaded images on disk and serves them under /uploads/.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Save sniffs the content, refuses anything outside the image allow-list
// and returns the public URL of the stored file.
func (s *ImageStore) Save(data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if !attachments.IsAllowedType(contentType) {
		return "", fmt.Errorf("%w: %s", attachments.ErrUnsupportedType, contentType)
	}
	name := uuid.NewString() + imageExtensions[contentType]
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return uploadsPrefix + name, nil
}

// Remove deletes the files behind urls. Unknown or foreign URLs are skipped.
func (s *ImageStore) Remove(urls []string) {
	for _, u := range urls {
		name, ok := strings.CutPrefix(u, uploadsPrefix)
		if !ok || name == "" || strings.ContainsAny(name, `/\`) {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}

func (s *ImageStore) Handler() http.Handler {
	return http.StripPrefix(uploadsPrefix, http.FileServer(http.Dir(s.dir)))
}
