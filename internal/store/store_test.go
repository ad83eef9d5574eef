package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTickets struct {
	err   error
	tasks []models.Task
	files [][]attachments.File
}

func (r *recordingTickets) Send(ctx context.Context, task models.Task, files []attachments.File) error {
	r.tasks = append(r.tasks, task)
	r.files = append(r.files, files)
	return r.err
}

func pngs(n int) []attachments.File {
	files := make([]attachments.File, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, attachments.FromBytes(fmt.Sprintf("%d.png", i), "image/png", []byte{byte(i)}))
	}
	return files
}

func TestOffline_InitialStateIsEmptyAndReady(t *testing.T) {
	s := NewOffline(nil)
	tasks, res := s.ListTasks(context.Background())
	require.True(t, res.OK())
	assert.Empty(t, tasks)
	state, _ := s.LoadState()
	assert.Equal(t, LoadReady, state)
	assert.Equal(t, FormOpen, s.FormState())
}

func TestOffline_CreateBuyMilk(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)

	task, res := s.CreateTask(ctx, "Buy milk", "2%")
	require.True(t, res.OK(), res.String())
	assert.NotEmpty(t, task.ID)

	tasks, _ := s.ListTasks(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, models.TaskStatusOpen, tasks[0].Status)
	assert.Equal(t, FormSent, s.FormState())
}

func TestOffline_CreateKeepsIDsUniqueAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)

	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		task, res := s.CreateTask(ctx, fmt.Sprintf("task %d", i), "c")
		require.True(t, res.OK())
		require.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
	tasks, _ := s.ListTasks(ctx)
	require.Len(t, tasks, 25)
	for i, task := range tasks {
		assert.Equal(t, fmt.Sprintf("task %d", i), task.Title)
	}
}

func TestOffline_CreateRequiresTitleAndContent(t *testing.T) {
	s := NewOffline(nil)
	_, res := s.CreateTask(context.Background(), "", "content")
	assert.Equal(t, ReasonValidation, res.Reason)
	_, res = s.CreateTask(context.Background(), "title", "  ")
	assert.Equal(t, ReasonValidation, res.Reason)
	assert.Empty(t, s.Tasks())
}

func TestOffline_CreateUsesPendingAttachmentsAndClearsThem(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)

	res := s.SelectFiles(ctx, []attachments.File{
		attachments.FromBytes("photo.png", "image/png", []byte("png")),
		attachments.FromBytes("notes.txt", "text/plain", []byte("txt")),
	})
	assert.Equal(t, ReasonValidation, res.Reason)
	assert.Equal(t, "only images accepted", s.AttachmentMessage())
	pending := s.PendingAttachments()
	require.Len(t, pending, 1)
	assert.Equal(t, "photo.png", pending[0].Name)

	task, res := s.CreateTask(ctx, "with image", "c")
	require.True(t, res.OK())
	require.Len(t, task.Images, 1)
	f, ok := s.ResolveImage(task.Images[0])
	require.True(t, ok)
	assert.Equal(t, "photo.png", f.Name)
	assert.Empty(t, s.PendingAttachments())
}

func TestOffline_TicketGetsAtMostFiveUploadsButTaskKeepsAll(t *testing.T) {
	ctx := context.Background()
	tickets := &recordingTickets{}
	s := NewOffline(nil, WithTicketSender(tickets))

	require.True(t, s.SelectFiles(ctx, pngs(7)).OK())
	task, res := s.CreateTask(ctx, "seven", "images")
	require.True(t, res.OK())
	assert.Len(t, task.Images, 7)

	require.Len(t, tickets.tasks, 1)
	assert.Equal(t, task.ID, tickets.tasks[0].ID)
	// the ticket client applies the cap while encoding
	assert.Len(t, tickets.files[0], 7)
}

func TestOffline_FailedTicketLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	tickets := &recordingTickets{err: errNetwork}
	s := NewOffline(nil, WithTicketSender(tickets), WithTasks(loadSeed(t)))
	require.True(t, s.SelectFiles(ctx, pngs(1)).OK())

	before := s.Tasks()
	_, res := s.CreateTask(ctx, "Buy milk", "2%")
	assert.Equal(t, ReasonTransport, res.Reason)
	assert.Equal(t, FormError, s.FormState())
	assert.Equal(t, before, s.Tasks())
	assert.Len(t, s.PendingAttachments(), 1, "pending set survives a failed submission")
}

func TestOffline_ToggleIsInvolution(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)
	task, _ := s.CreateTask(ctx, "Buy milk", "2%")

	require.True(t, s.ToggleTaskStatus(ctx, task.ID).OK())
	assert.Equal(t, models.TaskStatusDone, s.Tasks()[0].Status)

	require.True(t, s.ToggleTaskStatus(ctx, task.ID).OK())
	after := s.Tasks()[0]
	assert.Equal(t, models.TaskStatusOpen, after.Status)
	assert.Equal(t, task, after)

	assert.Equal(t, ReasonNotFound, s.ToggleTaskStatus(ctx, "nope").Reason)
}

func TestOffline_RemoveTask(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil, WithTasks(loadSeed(t)))
	tasks := s.Tasks()
	require.Len(t, tasks, 2)

	require.True(t, s.RemoveTask(ctx, tasks[0].ID).OK())
	left, _ := s.ListTasks(ctx)
	require.Len(t, left, 1)
	assert.NotEqual(t, tasks[0].ID, left[0].ID)

	assert.Equal(t, ReasonNotFound, s.RemoveTask(ctx, tasks[0].ID).Reason)
}

func TestOffline_RemoveRevokesImages(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)
	require.True(t, s.SelectFiles(ctx, pngs(1)).OK())
	task, _ := s.CreateTask(ctx, "t", "c")

	require.True(t, s.RemoveTask(ctx, task.ID).OK())
	_, ok := s.ResolveImage(task.Images[0])
	assert.False(t, ok)
}

func TestOffline_EditDraftDefaultsAndReopens(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil, WithTasks(loadSeed(t)))
	done := s.Tasks()[1]
	require.Equal(t, models.TaskStatusDone, done.Status)

	require.True(t, s.OpenEdit(done.ID).OK())
	s.SetDraftContent("new content")
	require.True(t, s.SaveEdit(ctx).OK())

	_, open := s.Editing()
	assert.False(t, open, "modal closes after save")

	got := s.Tasks()[1]
	assert.Equal(t, done.Title, got.Title, "blank draft title keeps the old one")
	assert.Equal(t, "new content", got.Content)
	assert.Equal(t, models.TaskStatusOpen, got.Status)
}

func TestOffline_CancelEditDropsDraft(t *testing.T) {
	s := NewOffline(nil, WithTasks(loadSeed(t)))
	id := s.Tasks()[0].ID

	require.True(t, s.OpenEdit(id).OK())
	s.SetDraftTitle("changed")
	s.CancelEdit()

	require.True(t, s.OpenEdit(id).OK())
	draft, ok := s.Editing()
	require.True(t, ok)
	assert.Empty(t, draft.Title)

	assert.Equal(t, ReasonNotFound, s.OpenEdit("missing").Reason)
	s.CancelEdit()
	assert.Equal(t, ReasonValidation, s.SaveEdit(context.Background()).Reason)
}

func TestOffline_UpdateClosesModalEvenWhenTaskIsGone(t *testing.T) {
	s := NewOffline(nil, WithTasks(loadSeed(t)))
	id := s.Tasks()[0].ID
	require.True(t, s.OpenEdit(id).OK())

	res := s.UpdateTaskContent(context.Background(), "gone", EditDraft{Title: "x"})
	assert.Equal(t, ReasonNotFound, res.Reason)
	_, open := s.Editing()
	assert.False(t, open)
}

func TestRemoveAttachment_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewOffline(nil)
	require.True(t, s.SelectFiles(ctx, pngs(3)).OK())

	s.RemoveAttachment("1.png")
	once := pendingNames(s)
	s.RemoveAttachment("1.png")
	assert.Equal(t, once, pendingNames(s))
	assert.Equal(t, []string{"0.png", "2.png"}, once)
}

func pendingNames(s *Store) []string {
	var out []string
	for _, p := range s.PendingAttachments() {
		out = append(out, p.Name)
	}
	return out
}

func TestSelectFiles_ReportsRejectedAndUnreadableTogether(t *testing.T) {
	s := NewNetworked(newFakeRemote())
	broken := attachments.NewFile("broken.png", "image/png", func() (io.ReadCloser, error) {
		return nil, errors.New("disk gone")
	})
	res := s.SelectFiles(context.Background(), []attachments.File{
		attachments.FromBytes("notes.txt", "text/plain", []byte("txt")),
		broken,
		attachments.FromBytes("ok.png", "image/png", []byte("png")),
	})

	assert.Equal(t, ReasonTransport, res.Reason)
	assert.ErrorIs(t, res.Err, ErrRejectedImages)
	assert.ErrorIs(t, res.Err, ErrUnreadable)
	assert.ErrorContains(t, res.Err, "broken.png")
	assert.Equal(t, []string{"ok.png"}, pendingNames(s))
}

func TestNetworked_InitialStateIsLoading(t *testing.T) {
	s := NewNetworked(newFakeRemote())
	state, _ := s.LoadState()
	assert.Equal(t, LoadLoading, state)
	assert.Empty(t, s.Tasks())
}

func TestNetworked_ListSortsByCreatedAt(t *testing.T) {
	seed := loadSeed(t)
	noStamp := models.Task{ID: "no-stamp", Title: "n", Status: models.TaskStatusOpen}
	s := NewNetworked(newFakeRemote(seed[0], noStamp, seed[1]))

	tasks, res := s.ListTasks(context.Background())
	require.True(t, res.OK())
	state, _ := s.LoadState()
	assert.Equal(t, LoadReady, state)
	require.Len(t, tasks, 3)
	// seed[1] is older but the untimed task between them blocks any swap
	assert.Equal(t, []string{seed[0].ID, "no-stamp", seed[1].ID}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})

	s = NewNetworked(newFakeRemote(seed[0], seed[1]))
	tasks, _ = s.ListTasks(context.Background())
	assert.Equal(t, seed[1].ID, tasks[0].ID)
	assert.Equal(t, seed[0].ID, tasks[1].ID)
}

func TestNetworked_ListFailureKeepsStaleTasks(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	_, res := s.ListTasks(ctx)
	require.True(t, res.OK())

	r.fail("list", errNetwork)
	tasks, res := s.ListTasks(ctx)
	assert.Equal(t, ReasonTransport, res.Reason)
	assert.Len(t, tasks, 2)
	state, err := s.LoadState()
	assert.Equal(t, LoadFailed, state)
	assert.ErrorIs(t, err, errNetwork)
}

func TestNetworked_CreateAppendsServerTask(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote()
	s := NewNetworked(r)

	require.True(t, s.SelectFiles(ctx, pngs(2)).OK())
	task, res := s.CreateTask(ctx, "Buy milk", "2%")
	require.True(t, res.OK())
	assert.Equal(t, "srv-1", task.ID)
	assert.Len(t, task.Images, 2)
	assert.Equal(t, FormSent, s.FormState())
	assert.Empty(t, s.PendingAttachments())

	require.Len(t, r.lastNew.Images, 2)
	assert.Contains(t, r.lastNew.Images[0], "data:image/png;base64,")

	// appended without a refetch
	assert.Equal(t, 0, r.callCount("list"))
	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, models.TaskStatusOpen, tasks[0].Status)
}

func TestNetworked_FailedCreateLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	before, _ := s.ListTasks(ctx)

	r.fail("create", errNetwork)
	_, res := s.CreateTask(ctx, "Buy milk", "2%")
	assert.Equal(t, ReasonTransport, res.Reason)
	assert.Equal(t, FormError, s.FormState())
	assert.Equal(t, before, s.Tasks())

	// the next submission starts a fresh cycle
	_, res = s.CreateTask(ctx, "Buy milk", "2%")
	require.True(t, res.OK())
	assert.Equal(t, FormSent, s.FormState())
}

func TestNetworked_ToggleSendsStatusOnlyAndRefetches(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote()
	s := NewNetworked(r)
	task, _ := s.CreateTask(ctx, "Buy milk", "2%")

	require.True(t, s.ToggleTaskStatus(ctx, task.ID).OK())
	assert.Nil(t, r.lastPatch.Title)
	assert.Nil(t, r.lastPatch.Content)
	require.NotNil(t, r.lastPatch.Status)
	assert.Equal(t, models.TaskStatusDone, *r.lastPatch.Status)
	assert.Equal(t, 1, r.callCount("list"))
	assert.Equal(t, models.TaskStatusDone, s.Tasks()[0].Status)

	require.True(t, s.ToggleTaskStatus(ctx, task.ID).OK())
	assert.Equal(t, models.TaskStatusOpen, s.Tasks()[0].Status)
}

func TestNetworked_RemoveRefetchesAndNeverShowsRemovedTask(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	tasks, _ := s.ListTasks(ctx)
	id := tasks[0].ID

	require.True(t, s.RemoveTask(ctx, id).OK())
	for _, task := range s.Tasks() {
		assert.NotEqual(t, id, task.ID)
	}

	res := s.RemoveTask(ctx, id)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestNetworked_FailedDeleteKeepsTask(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	tasks, _ := s.ListTasks(ctx)

	r.fail("delete", errNetwork)
	res := s.RemoveTask(ctx, tasks[0].ID)
	assert.Equal(t, ReasonTransport, res.Reason)
	assert.Len(t, s.Tasks(), 2)
}

func TestNetworked_UpdateContent(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	tasks, _ := s.ListTasks(ctx)
	var done models.Task
	for _, task := range tasks {
		if task.Status == models.TaskStatusDone {
			done = task
		}
	}

	require.True(t, s.OpenEdit(done.ID).OK())
	s.SetDraftTitle("Finish POC today")
	require.True(t, s.SaveEdit(ctx).OK())

	require.NotNil(t, r.lastPatch.Content)
	assert.Equal(t, done.Content, *r.lastPatch.Content)
	for _, task := range s.Tasks() {
		if task.ID == done.ID {
			assert.Equal(t, "Finish POC today", task.Title)
			assert.Equal(t, models.TaskStatusOpen, task.Status)
		}
	}
}

func TestNetworked_UpdateFailureIsTyped(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote(loadSeed(t)...)
	s := NewNetworked(r)
	tasks, _ := s.ListTasks(ctx)

	r.fail("patch", errNetwork)
	res := s.UpdateTaskContent(ctx, tasks[0].ID, EditDraft{Title: "x"})
	assert.Equal(t, ReasonTransport, res.Reason)
	assert.Equal(t, tasks, s.Tasks())
}

func TestFollow_NeedsWatcher(t *testing.T) {
	assert.ErrorIs(t, NewOffline(nil).Follow(context.Background()), ErrNotNetworked)
	assert.ErrorIs(t, NewNetworked(newFakeRemote()).Follow(context.Background()), ErrNotNetworked)
}

type watchingRemote struct {
	*fakeRemote
	events []models.Event
}

func (w *watchingRemote) Watch(ctx context.Context, fn func(models.Event)) error {
	for _, ev := range w.events {
		fn(ev)
	}
	return nil
}

func TestFollow_RefetchesOnEvents(t *testing.T) {
	r := &watchingRemote{
		fakeRemote: newFakeRemote(loadSeed(t)...),
		events: []models.Event{
			{Event: models.EventTodoCreated},
			{Event: models.EventTodoDeleted},
		},
	}
	s := NewNetworked(r)

	require.NoError(t, s.Follow(context.Background()))
	assert.Equal(t, 2, r.callCount("list"))
	assert.Len(t, s.Tasks(), 2)
}

func TestWithOnRefresh_SeesEveryLoad(t *testing.T) {
	var loads [][]models.Task
	s := NewNetworked(newFakeRemote(loadSeed(t)...), WithOnRefresh(func(tasks []models.Task) {
		loads = append(loads, tasks)
	}))

	_, res := s.ListTasks(context.Background())
	require.True(t, res.OK())
	require.True(t, s.ToggleTaskStatus(context.Background(), s.Tasks()[0].ID).OK())

	require.Len(t, loads, 2)
	assert.Len(t, loads[1], 2)
	assert.NotEqual(t, loads[0][0].Status, loads[1][0].Status)
}

func TestSortByCreatedAt_StableForEqualStamps(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{{ID: "a", CreatedAt: &ts}, {ID: "b", CreatedAt: &ts}}
	sortByCreatedAt(tasks)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}
