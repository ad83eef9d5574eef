package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/shared/models"
)

// TicketClient posts offline-created tasks to the ticket endpoint.
type TicketClient struct {
	url        string
	httpClient *http.Client
}

func NewTicketClient(url string, opts ...Option) *TicketClient {
	c := NewClient(url, opts...)
	return &TicketClient{url: url, httpClient: c.httpClient}
}

func (t *TicketClient) Send(ctx context.Context, task models.Task, files []attachments.File) error {
	body, contentType, _, err := EncodeTicketForm(task, files)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
