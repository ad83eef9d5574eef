package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/internal/remote"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type FormState string

const (
	FormOpen  FormState = "open"
	FormSent  FormState = "sent"
	FormError FormState = "error"
)

type LoadState string

const (
	LoadLoading LoadState = "loading"
	LoadReady   LoadState = "ready"
	LoadFailed  LoadState = "failed"
)

const defaultOrigin = "http://localhost"

var (
	ErrNotFound       = errors.New("task not found")
	ErrMissingFields  = errors.New("title and content are required")
	ErrNotEditing     = errors.New("no task is open for editing")
	ErrNotNetworked   = errors.New("live updates need a networked store")
	ErrRejectedImages = errors.New(attachments.RejectMessage)
	ErrUnreadable     = errors.New("could not read files")
)

// Remote is the task collection the networked variant syncs against.
type Remote interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, in models.NewTask) (models.Task, error)
	PartialUpdate(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id string) error
}

// Watcher is implemented by remotes that push live events.
type Watcher interface {
	Watch(ctx context.Context, fn func(models.Event)) error
}

// TicketSender receives tasks created by the offline variant.
type TicketSender interface {
	Send(ctx context.Context, task models.Task, files []attachments.File) error
}

// Store owns the task collection, the pending attachments of the create
// form, the form state and the edit draft. Its methods are the only way
// to change any of them.
type Store struct {
	remote   Remote
	tickets  TicketSender
	urls     *attachments.ObjectURLs
	pipeline *attachments.Pipeline
	log      zerolog.Logger
	newID    func() string
	onLoad   func([]models.Task)

	mutex     sync.Mutex
	tasks     []models.Task
	formState FormState
	loadState LoadState
	loadErr   error
	edit      *EditDraft
}

type Option func(*Store)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithTicketSender makes the offline variant post every created task.
func WithTicketSender(t TicketSender) Option {
	return func(s *Store) { s.tickets = t }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithOnRefresh registers fn to receive every freshly loaded collection.
func WithOnRefresh(fn func([]models.Task)) Option {
	return func(s *Store) { s.onLoad = fn }
}

// WithTasks preloads the collection. Meant for fixtures.
func WithTasks(tasks []models.Task) Option {
	return func(s *Store) {
		s.tasks = make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			s.tasks = append(s.tasks, t.Clone())
		}
	}
}

// NewOffline builds the variant that keeps everything in memory. Images are
// held as object URLs issued by urls.
func NewOffline(urls *attachments.ObjectURLs, opts ...Option) *Store {
	if urls == nil {
		urls = attachments.NewObjectURLs(defaultOrigin)
	}
	s := newStore(opts)
	s.urls = urls
	s.loadState = LoadReady
	s.pipeline = attachments.NewPipeline(urls, s.log)
	return s
}

// NewNetworked builds the variant that syncs with a remote collection. It
// starts empty and loading until the first ListTasks.
func NewNetworked(r Remote, opts ...Option) *Store {
	s := newStore(opts)
	s.remote = r
	s.loadState = LoadLoading
	s.pipeline = attachments.NewPipeline(attachments.Base64Encoder{}, s.log)
	return s
}

func newStore(opts []Option) *Store {
	s := &Store{
		log:       zerolog.Nop(),
		newID:     uuid.NewString,
		formState: FormOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Networked() bool { return s.remote != nil }

// Tasks returns the current collection without touching the network.
func (s *Store) Tasks() []models.Task {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return cloneTasks(s.tasks)
}

func (s *Store) FormState() FormState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.formState
}

// LoadState reports the outcome of the last list load and its error.
func (s *Store) LoadState() (LoadState, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loadState, s.loadErr
}

// ListTasks returns the collection. The networked variant refetches it first
// and orders it by createdAt. On failure the stale collection is returned.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, Result) {
	if s.remote == nil {
		return s.Tasks(), Result{}
	}
	res := s.refresh(ctx)
	return s.Tasks(), res
}

// CreateTask submits the create form with the current pending attachments.
func (s *Store) CreateTask(ctx context.Context, title, content string) (models.Task, Result) {
	s.setFormState(FormOpen)
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return models.Task{}, Result{Reason: ReasonValidation, Err: ErrMissingFields}
	}

	pending := s.pipeline.Pending()
	images := make([]string, 0, len(pending))
	for _, p := range pending {
		images = append(images, p.Encoded)
	}

	if s.remote == nil {
		return s.createOffline(ctx, title, content, images, pending)
	}

	task, err := s.remote.Create(ctx, models.NewTask{Title: title, Content: content, Images: images})
	if err != nil {
		s.setFormState(FormError)
		s.log.Error().Err(err).Str("title", title).Msg("failed to create task")
		return models.Task{}, failure(err)
	}

	s.mutex.Lock()
	s.tasks = upsert(s.tasks, task)
	s.formState = FormSent
	s.mutex.Unlock()
	s.pipeline.Clear()
	return task.Clone(), Result{}
}

func (s *Store) createOffline(ctx context.Context, title, content string, images []string, pending []attachments.Pending) (models.Task, Result) {
	task := models.Task{
		ID:      s.newID(),
		Title:   title,
		Content: content,
		Status:  models.TaskStatusOpen,
		Images:  images,
	}
	s.mutex.Lock()
	s.tasks = upsert(s.tasks, task)
	s.mutex.Unlock()

	if s.tickets != nil {
		files := make([]attachments.File, 0, len(pending))
		for _, p := range pending {
			files = append(files, p.File)
		}
		if err := s.tickets.Send(ctx, task, files); err != nil {
			s.mutex.Lock()
			s.tasks, _ = without(s.tasks, task.ID)
			s.formState = FormError
			s.mutex.Unlock()
			s.log.Error().Err(err).Str("task_id", task.ID).Msg("failed to send ticket")
			return models.Task{}, failure(err)
		}
	}

	s.setFormState(FormSent)
	s.pipeline.Clear()
	return task.Clone(), Result{}
}

// RemoveTask deletes a task. Offline it is gone at once; networked the
// collection only changes when the refetch after the delete completes.
func (s *Store) RemoveTask(ctx context.Context, id string) Result {
	if s.remote == nil {
		s.mutex.Lock()
		var removed *models.Task
		s.tasks, removed = without(s.tasks, id)
		s.mutex.Unlock()
		if removed == nil {
			return Result{Reason: ReasonNotFound, Err: ErrNotFound}
		}
		for _, img := range removed.Images {
			s.urls.Revoke(img)
		}
		return Result{}
	}

	if err := s.remote.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("failed to delete task")
		return failure(err)
	}
	return s.refresh(ctx)
}

// ToggleTaskStatus flips a task between open and done.
func (s *Store) ToggleTaskStatus(ctx context.Context, id string) Result {
	if s.remote == nil {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		i := indexOf(s.tasks, id)
		if i < 0 {
			return Result{Reason: ReasonNotFound, Err: ErrNotFound}
		}
		s.tasks[i].Status = s.tasks[i].Status.Toggle()
		return Result{}
	}

	current, ok := s.find(id)
	if !ok {
		return Result{Reason: ReasonNotFound, Err: ErrNotFound}
	}
	next := current.Status.Toggle()
	if _, err := s.remote.PartialUpdate(ctx, id, models.TaskPatch{Status: &next}); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("failed to toggle task")
		return failure(err)
	}
	return s.refresh(ctx)
}

// UpdateTaskContent applies an edit draft: empty draft fields keep the
// current value, and the status goes back to open. The edit modal is closed
// whatever the outcome.
func (s *Store) UpdateTaskContent(ctx context.Context, id string, draft EditDraft) Result {
	s.CancelEdit()

	current, ok := s.find(id)
	if !ok {
		return Result{Reason: ReasonNotFound, Err: ErrNotFound}
	}
	title := draft.Title
	if title == "" {
		title = current.Title
	}
	content := draft.Content
	if content == "" {
		content = current.Content
	}
	status := models.TaskStatusOpen

	if s.remote == nil {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		i := indexOf(s.tasks, id)
		if i < 0 {
			return Result{Reason: ReasonNotFound, Err: ErrNotFound}
		}
		s.tasks[i].Title = title
		s.tasks[i].Content = content
		s.tasks[i].Status = status
		return Result{}
	}

	patch := models.TaskPatch{Title: &title, Content: &content, Status: &status}
	if _, err := s.remote.PartialUpdate(ctx, id, patch); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("failed to update task")
		return failure(err)
	}
	return s.refresh(ctx)
}

// SelectFiles validates and encodes a batch of files into the pending set.
// Rejected files make the result a validation failure, files that could not
// be read a transport failure carrying ErrUnreadable. The accepted ones are
// kept either way.
func (s *Store) SelectFiles(ctx context.Context, files []attachments.File) Result {
	sel, err := s.pipeline.Select(ctx, files)
	if err != nil {
		return Result{Reason: ReasonTransport, Err: err}
	}
	var rejected error
	if len(sel.Rejected) > 0 {
		rejected = ErrRejectedImages
	}
	if len(sel.Failed) > 0 {
		unreadable := fmt.Errorf("%w: %s", ErrUnreadable, strings.Join(sel.Failed, ", "))
		return Result{Reason: ReasonTransport, Err: errors.Join(rejected, unreadable)}
	}
	if rejected != nil {
		return Result{Reason: ReasonValidation, Err: rejected}
	}
	return Result{}
}

// RemoveAttachment drops every pending attachment called name.
func (s *Store) RemoveAttachment(name string) {
	s.pipeline.Remove(name)
}

func (s *Store) PendingAttachments() []attachments.Pending {
	return s.pipeline.Pending()
}

// AttachmentMessage is the rejection message of the last selection batch.
func (s *Store) AttachmentMessage() string {
	return s.pipeline.Message()
}

// ResolveImage returns the file handle behind an offline object URL.
func (s *Store) ResolveImage(url string) (attachments.File, bool) {
	if s.urls == nil {
		return attachments.File{}, false
	}
	return s.urls.Resolve(url)
}

// Follow refetches the collection on every live event until ctx ends.
func (s *Store) Follow(ctx context.Context) error {
	w, ok := s.remote.(Watcher)
	if !ok {
		return ErrNotNetworked
	}
	return w.Watch(ctx, func(ev models.Event) {
		s.log.Debug().Str("event", ev.Event).Str("task_id", ev.Todo.ID).Msg("live update")
		s.refresh(ctx)
	})
}

func (s *Store) refresh(ctx context.Context) Result {
	tasks, err := s.remote.List(ctx)
	if err != nil {
		s.mutex.Lock()
		s.loadState = LoadFailed
		s.loadErr = err
		s.mutex.Unlock()
		s.log.Error().Err(err).Msg("failed to load tasks")
		return failure(err)
	}
	sortByCreatedAt(tasks)

	s.mutex.Lock()
	s.tasks = tasks
	s.loadState = LoadReady
	s.loadErr = nil
	s.mutex.Unlock()
	if s.onLoad != nil {
		s.onLoad(cloneTasks(tasks))
	}
	return Result{}
}

func (s *Store) find(id string) (models.Task, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	i := indexOf(s.tasks, id)
	if i < 0 {
		return models.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

func (s *Store) setFormState(state FormState) {
	s.mutex.Lock()
	s.formState = state
	s.mutex.Unlock()
}

func indexOf(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// upsert keeps ids unique: a task whose id is already present replaces it.
func upsert(tasks []models.Task, task models.Task) []models.Task {
	if i := indexOf(tasks, task.ID); i >= 0 {
		tasks[i] = task
		return tasks
	}
	return append(tasks, task)
}

func without(tasks []models.Task, id string) ([]models.Task, *models.Task) {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks, nil
	}
	removed := tasks[i]
	out := make([]models.Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	out = append(out, tasks[i+1:]...)
	return out, &removed
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}

func failure(err error) Result {
	if errors.Is(err, remote.ErrNotFound) || errors.Is(err, ErrNotFound) {
		return Result{Reason: ReasonNotFound, Err: err}
	}
	return Result{Reason: ReasonTransport, Err: err}
}
