package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/magna-todo/shared/models"
)

var ErrTodoNotFound = errors.New("todo not found")

// defines methods for todo db operations
type TodoRepositoryInterface interface {
	Create(ctx context.Context, todo *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	Update(ctx context.Context, todo *models.Task) error
	Delete(ctx context.Context, id string) error
}

type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Create(ctx context.Context, todo *models.Task) error {
	images, err := encodeImages(todo.Images)
	if err != nil {
		return err
	}
	query := `INSERT INTO todos (id, title, content, status, images, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(
		ctx, query, todo.ID, todo.Title, todo.Content, todo.Status, images,
		stamp(todo.CreatedAt), stamp(todo.UpdatedAt))
	return err
}

func (r *TodoRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT id, title, content, status, images, created_at, updated_at FROM todos WHERE id = $1`
	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTodoNotFound
	}
	return todo, err
}

func (r *TodoRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT id, title, content, status, images, created_at, updated_at
	 FROM todos ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []*models.Task{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

// Update writes title, content, status and updated_at. Images never change
// after creation.
func (r *TodoRepository) Update(ctx context.Context, todo *models.Task) error {
	query := `UPDATE todos SET title = $1, content = $2, status = $3, updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, todo.Title, todo.Content, todo.Status, stamp(todo.UpdatedAt), todo.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Task, error) {
	todo := &models.Task{}
	var images string
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&todo.ID, &todo.Title, &todo.Content, &todo.Status, &images, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &todo.Images); err != nil {
		return nil, fmt.Errorf("decode images of todo %s: %w", todo.ID, err)
	}
	createdAt, updatedAt = createdAt.UTC(), updatedAt.UTC()
	todo.CreatedAt = &createdAt
	todo.UpdatedAt = &updatedAt
	return todo, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTodoNotFound
	}
	return nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	return string(b), err
}

func stamp(t *time.Time) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
