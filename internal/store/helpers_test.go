package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/chepyr/magna-todo/internal/remote"
	"github.com/chepyr/magna-todo/shared/models"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tasks []struct {
		ID        string    `yaml:"id"`
		Title     string    `yaml:"title"`
		Content   string    `yaml:"content"`
		Status    string    `yaml:"status"`
		CreatedAt time.Time `yaml:"createdAt"`
	} `yaml:"tasks"`
}

// loadSeed reads the two sample tasks used as a fixture.
func loadSeed(t *testing.T) []models.Task {
	t.Helper()
	raw, err := os.ReadFile("testdata/seed.yaml")
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	tasks := make([]models.Task, 0, len(seed.Tasks))
	for _, s := range seed.Tasks {
		created := s.CreatedAt
		tasks = append(tasks, models.Task{
			ID:        s.ID,
			Title:     s.Title,
			Content:   s.Content,
			Status:    models.TaskStatus(s.Status),
			CreatedAt: &created,
		})
	}
	return tasks
}

// fakeRemote is an in-memory collection with switchable failures.
type fakeRemote struct {
	mutex     sync.Mutex
	tasks     []models.Task
	seq       int
	clock     time.Time
	failNext  map[string]error
	calls     []string
	lastPatch models.TaskPatch
	lastNew   models.NewTask
}

func newFakeRemote(tasks ...models.Task) *fakeRemote {
	return &fakeRemote{
		tasks:    append([]models.Task(nil), tasks...),
		clock:    time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		failNext: map[string]error{},
	}
}

func (f *fakeRemote) fail(op string, err error) {
	f.mutex.Lock()
	f.failNext[op] = err
	f.mutex.Unlock()
}

func (f *fakeRemote) takeErr(op string) error {
	f.calls = append(f.calls, op)
	err := f.failNext[op]
	delete(f.failNext, op)
	return err
}

func (f *fakeRemote) callCount(op string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeRemote) List(ctx context.Context) ([]models.Task, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.takeErr("list"); err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, in models.NewTask) (models.Task, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.takeErr("create"); err != nil {
		return models.Task{}, err
	}
	f.lastNew = in
	f.seq++
	f.clock = f.clock.Add(time.Minute)
	created := f.clock
	task := models.Task{
		ID:        fmt.Sprintf("srv-%d", f.seq),
		Title:     in.Title,
		Content:   in.Content,
		Status:    models.TaskStatusOpen,
		CreatedAt: &created,
		UpdatedAt: &created,
	}
	for i := range in.Images {
		task.Images = append(task.Images, fmt.Sprintf("/uploads/%d-%d.png", f.seq, i))
	}
	f.tasks = append(f.tasks, task)
	return task.Clone(), nil
}

func (f *fakeRemote) PartialUpdate(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.takeErr("patch"); err != nil {
		return models.Task{}, err
	}
	f.lastPatch = patch
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if patch.Title != nil {
			f.tasks[i].Title = *patch.Title
		}
		if patch.Content != nil {
			f.tasks[i].Content = *patch.Content
		}
		if patch.Status != nil {
			f.tasks[i].Status = *patch.Status
		}
		return f.tasks[i].Clone(), nil
	}
	return models.Task{}, &remote.StatusError{Code: 404, Body: "Todo not found"}
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.takeErr("delete"); err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &remote.StatusError{Code: 404, Body: "Todo not found"}
}

var errNetwork = errors.New("connection refused")
