package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/internal/remote"
	"github.com/chepyr/magna-todo/shared"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/chepyr/magna-todo/todos-service/db"
	"github.com/google/uuid"
)

const maxCreateBody = 32 << 20 // 32MB

/*
handles routes:
- GET /api/todos - list todos ordered by creation time
- POST /api/todos - create a todo from a multipart form
*/
func (h *Handler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTodos(w, r)
	case http.MethodPost:
		h.createTodo(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /support/ticket takes the same form as POST /api/todos
func (h *Handler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.createTodo(w, r)
}

/*
routes:
- GET /api/todos/{id},
- PATCH /api/todos/{id},
- DELETE /api/todos/{id}
*/
func (h *Handler) HandleTodoByID(w http.ResponseWriter, r *http.Request) {
	todoID := strings.TrimPrefix(r.URL.Path, "/api/todos/")
	if todoID == "" {
		sendError(w, "todo id is required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(todoID); err != nil {
		sendError(w, "todo id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTodo(w, r, todoID)
	case http.MethodPatch:
		h.updateTodo(w, r, todoID)
	case http.MethodDelete:
		h.deleteTodo(w, r, todoID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	todos, err := h.TodoRepo.List(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to list todos")
		sendError(w, "Failed to list todos", http.StatusInternalServerError)
		return
	}
	shared.SendJSON(w, todos, http.StatusOK)
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.Log.Warn().Str("ip", ip).Msg("create rate limit exceeded")
		sendError(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	if err := r.ParseMultipartForm(maxCreateBody); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			sendError(w, "Content-Type must be multipart/form-data", http.StatusBadRequest)
			return
		}
		sendError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := strings.TrimSpace(r.FormValue(remote.FieldTitle))
	content := strings.TrimSpace(r.FormValue(remote.FieldContent))
	if title == "" || content == "" {
		sendError(w, "todoTitle and todoContent are required", http.StatusBadRequest)
		return
	}

	payloads, err := collectImages(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	urls := make([]string, 0, len(payloads))
	for _, data := range payloads {
		url, err := h.Images.Save(data)
		if err != nil {
			h.Images.Remove(urls)
			if errors.Is(err, attachments.ErrUnsupportedType) {
				sendError(w, attachments.RejectMessage, http.StatusBadRequest)
				return
			}
			h.Log.Error().Err(err).Msg("failed to store image")
			sendError(w, "Failed to store image", http.StatusInternalServerError)
			return
		}
		urls = append(urls, url)
	}

	now := time.Now().UTC()
	todo := &models.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Status:    models.TaskStatusOpen,
		Images:    urls,
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.TodoRepo.Create(ctx, todo); err != nil {
		h.Images.Remove(urls)
		h.Log.Error().Err(err).Msg("failed to create todo")
		sendError(w, "Failed to create todo", http.StatusInternalServerError)
		return
	}
	h.Log.Info().Str("todo_id", todo.ID).Int("images", len(urls)).Msg("todo created")
	h.broadcast(models.EventTodoCreated, todo)
	w.Header().Set("Location", "/api/todos/"+todo.ID)
	shared.SendJSON(w, todo, http.StatusCreated)
}

// collectImages decodes the todoImages JSON array and reads at most
// remote.MaxUploads raw upload parts.
func collectImages(r *http.Request) ([][]byte, error) {
	var payloads [][]byte

	if raw := r.FormValue(remote.FieldImages); raw != "" {
		var encoded []string
		if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
			return nil, errors.New("todoImages must be a JSON array of strings")
		}
		for _, e := range encoded {
			data, _, err := attachments.DecodeDataURL(e)
			if err != nil {
				return nil, errors.New("todoImages entries must be base64 encoded")
			}
			payloads = append(payloads, data)
		}
	}

	uploads := r.MultipartForm.File[remote.FieldUploads]
	if len(uploads) > remote.MaxUploads {
		uploads = uploads[:remote.MaxUploads]
	}
	for _, fh := range uploads {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.New("cannot read upload " + fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.New("cannot read upload " + fh.Filename)
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

func (h *Handler) getTodo(w http.ResponseWriter, r *http.Request, todoID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	todo, err := h.TodoRepo.GetByID(ctx, todoID)
	if err != nil {
		h.sendLookupError(w, err, todoID)
		return
	}
	shared.SendJSON(w, todo, http.StatusOK)
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request, todoID string) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input struct {
		Title   *string `json:"todoTitle"`
		Content *string `json:"todoContent"`
		Status  *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing, err := h.TodoRepo.GetByID(ctx, todoID)
	if err != nil {
		h.sendLookupError(w, err, todoID)
		return
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			sendError(w, "todoTitle cannot be empty", http.StatusBadRequest)
			return
		}
		existing.Title = title
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			sendError(w, "todoContent cannot be empty", http.StatusBadRequest)
			return
		}
		existing.Content = content
	}
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		if !status.Valid() {
			sendError(w, "Invalid status value", http.StatusBadRequest)
			return
		}
		existing.Status = status
	}
	now := time.Now().UTC()
	existing.UpdatedAt = &now

	if err := h.TodoRepo.Update(ctx, existing); err != nil {
		h.sendLookupError(w, err, todoID)
		return
	}
	h.broadcast(models.EventTodoUpdated, existing)
	shared.SendJSON(w, existing, http.StatusOK)
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request, todoID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing, err := h.TodoRepo.GetByID(ctx, todoID)
	if err != nil {
		h.sendLookupError(w, err, todoID)
		return
	}
	if err := h.TodoRepo.Delete(ctx, todoID); err != nil {
		h.sendLookupError(w, err, todoID)
		return
	}
	h.Images.Remove(existing.Images)
	h.broadcast(models.EventTodoDeleted, &models.Task{ID: todoID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendLookupError(w http.ResponseWriter, err error, todoID string) {
	if errors.Is(err, db.ErrTodoNotFound) {
		sendError(w, "Todo not found", http.StatusNotFound)
		return
	}
	h.Log.Error().Err(err).Str("todo_id", todoID).Msg("todo lookup failed")
	sendError(w, "Failed to access todo", http.StatusInternalServerError)
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}
