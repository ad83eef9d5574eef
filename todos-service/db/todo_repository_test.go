package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/chepyr/magna-todo/shared/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTodosDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every new connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTodo(title string, created time.Time) *models.Task {
	return &models.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   "content of " + title,
		Status:    models.TaskStatusOpen,
		Images:    []string{"/uploads/" + title + ".png"},
		CreatedAt: &created,
		UpdatedAt: &created,
	}
}

func TestTodoRepository_Create_Get_Update_Delete_List(t *testing.T) {
	dbx := setupTodosDB(t)
	defer func() {
		if err := dbx.Close(); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	repo := NewTodoRepository(dbx)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Create
	todo := newTodo("first", now)
	if err := repo.Create(ctx, todo); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// GetByID
	got, err := repo.GetByID(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "first" || got.Status != models.TaskStatusOpen {
		t.Fatalf("unexpected todo: %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0] != "/uploads/first.png" {
		t.Fatalf("images not round-tripped: %v", got.Images)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}

	// Update
	later := now.Add(time.Minute)
	got.Title = "first (edited)"
	got.Status = models.TaskStatusDone
	got.UpdatedAt = &later
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err := repo.GetByID(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if updated.Title != "first (edited)" || updated.Status != models.TaskStatusDone {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at = %v, want %v", updated.UpdatedAt, later)
	}

	// List is ordered by created_at ascending
	if err := repo.Create(ctx, newTodo("older", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Create older: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Title != "older" || list[1].Title != "first (edited)" {
		t.Fatalf("unexpected list order: %+v", list)
	}

	// Delete
	if err := repo.Delete(ctx, todo.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, todo.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("GetByID after delete: want ErrTodoNotFound, got %v", err)
	}
}

func TestTodoRepository_MissingRows(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	if err := repo.Delete(ctx, uuid.NewString()); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("Delete missing: want ErrTodoNotFound, got %v", err)
	}
	ghost := newTodo("ghost", time.Now().UTC())
	if err := repo.Update(ctx, ghost); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("Update missing: want ErrTodoNotFound, got %v", err)
	}
}

func TestTodoRepository_EmptyListAndNilImages(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("want empty non-nil list, got %#v", list)
	}

	todo := newTodo("plain", time.Now().UTC())
	todo.Images = nil
	if err := repo.Create(ctx, todo); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Images) != 0 {
		t.Fatalf("want no images, got %v", got.Images)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	if err := Migrate(context.Background(), dbx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
