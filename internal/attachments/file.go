package attachments

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

const RejectMessage = "only images accepted"

var ErrUnsupportedType = errors.New("unsupported file type")

// allow-list, compared exactly against the reported content type
var allowedTypes = map[string]bool{
	"image/gif":  true,
	"image/jpeg": true,
	"image/png":  true,
}

func IsAllowedType(contentType string) bool {
	return allowedTypes[contentType]
}

// File is a selected file: a name, the content type reported by whoever
// selected it, and a way to read its bytes.
type File struct {
	Name string
	Type string
	open func() (io.ReadCloser, error)
}

func NewFile(name, contentType string, open func() (io.ReadCloser, error)) File {
	return File{Name: name, Type: contentType, open: open}
}

func FromBytes(name, contentType string, data []byte) File {
	return NewFile(name, contentType, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPath reports the type from the extension, the way a browser file
// picker does. Unknown extensions yield an empty type.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	contentType, _, _ := strings.Cut(mime.TypeByExtension(filepath.Ext(path)), ";")
	return NewFile(filepath.Base(path), strings.TrimSpace(contentType), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %q has no content", f.Name)
	}
	return f.open()
}

// ReadAll reads the whole file.
func (f File) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
