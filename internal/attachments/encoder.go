package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Encoder turns a selected file into the form that travels with a task.
type Encoder interface {
	Encode(ctx context.Context, f File) (string, error)
}

// Base64Encoder produces data URLs, the networked representation.
type Base64Encoder struct{}

func (Base64Encoder) Encode(ctx context.Context, f File) (string, error) {
	data, err := f.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "data:" + f.Type + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL accepts a data URL or a bare base64 string and returns the
// bytes plus the declared type (empty for bare base64).
func DecodeDataURL(s string) ([]byte, string, error) {
	contentType := ""
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data url")
		}
		var isBase64 bool
		contentType, isBase64 = strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return nil, "", fmt.Errorf("data url is not base64 encoded")
		}
		payload = data
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return raw, contentType, nil
}

// ObjectURLs hands out blob: URLs that stand for in-memory file handles,
// the offline representation. Handles live until revoked.
type ObjectURLs struct {
	origin  string
	mutex   sync.Mutex
	handles map[string]File
}

func NewObjectURLs(origin string) *ObjectURLs {
	return &ObjectURLs{origin: origin, handles: make(map[string]File)}
}

func (o *ObjectURLs) Encode(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	url := "blob:" + o.origin + "/" + uuid.NewString()
	o.mutex.Lock()
	o.handles[url] = f
	o.mutex.Unlock()
	return url, nil
}

func (o *ObjectURLs) Resolve(url string) (File, bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	f, ok := o.handles[url]
	return f, ok
}

func (o *ObjectURLs) Revoke(url string) {
	o.mutex.Lock()
	delete(o.handles, url)
	o.mutex.Unlock()
}
