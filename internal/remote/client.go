package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chepyr/magna-todo/shared/models"
)

const todosPath = "/api/todos"

var ErrNotFound = errors.New("todo not found")

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to the todo collection. One attempt per call: no timeout,
// retry or backoff beyond what the caller's context imposes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, todosPath, nil, "", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) Create(ctx context.Context, in models.NewTask) (models.Task, error) {
	body, contentType, err := EncodeCreateForm(in)
	if err != nil {
		return models.Task{}, err
	}
	var task models.Task
	if err := c.do(ctx, http.MethodPost, todosPath, body, contentType, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (c *Client) PartialUpdate(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	buf, err := json.Marshal(patch)
	if err != nil {
		return models.Task{}, err
	}
	var task models.Task
	err = c.do(ctx, http.MethodPatch, todosPath+"/"+url.PathEscape(id), bytes.NewReader(buf), "application/json", &task)
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Delete ignores whatever body the collection replies with.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, todosPath+"/"+url.PathEscape(id), nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
