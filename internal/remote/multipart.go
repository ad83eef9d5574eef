package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/shared/models"
)

const (
	FieldID      = "id"
	FieldTitle   = "todoTitle"
	FieldContent = "todoContent"
	FieldStatus  = "status"
	FieldImages  = "todoImages"
	FieldUploads = "uploads"

	// MaxUploads caps the raw file parts of a ticket. Extra files are
	// dropped without notice.
	MaxUploads = 5
)

// EncodeCreateForm builds the networked create payload: title, content and
// one field holding the JSON array of encoded images.
func EncodeCreateForm(in models.NewTask) (*bytes.Buffer, string, error) {
	images := in.Images
	if images == nil {
		images = []string{}
	}
	encoded, err := json.Marshal(images)
	if err != nil {
		return nil, "", err
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := [][2]string{
		{FieldTitle, in.Title},
		{FieldContent, in.Content},
		{FieldImages, string(encoded)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// EncodeTicketForm builds the offline submission: the task's string fields
// followed by at most MaxUploads raw file parts. It returns how many parts
// were written.
func EncodeTicketForm(task models.Task, files []attachments.File) (*bytes.Buffer, string, int, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := [][2]string{
		{FieldID, task.ID},
		{FieldTitle, task.Title},
		{FieldContent, task.Content},
		{FieldStatus, string(task.Status)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", 0, err
		}
	}

	n := min(len(files), MaxUploads)
	for _, f := range files[:n] {
		if err := writeFilePart(w, f); err != nil {
			return nil, "", 0, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", 0, err
	}
	return body, w.FormDataContentType(), n, nil
}

func writeFilePart(w *multipart.Writer, f attachments.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldUploads, escapeQuotes(f.Name)))
	contentType := f.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	_, err = io.Copy(part, rc)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
