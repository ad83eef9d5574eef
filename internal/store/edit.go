package store

import "context"

// EditDraft holds the edit modal's working copies. Empty fields mean
// "keep the task's current value".
type EditDraft struct {
	TaskID  string
	Title   string
	Content string
}

// OpenEdit opens the edit modal for a task with an empty draft.
func (s *Store) OpenEdit(id string) Result {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if indexOf(s.tasks, id) < 0 {
		return Result{Reason: ReasonNotFound, Err: ErrNotFound}
	}
	s.edit = &EditDraft{TaskID: id}
	return Result{}
}

// Editing returns the open draft, if any.
func (s *Store) Editing() (EditDraft, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.edit == nil {
		return EditDraft{}, false
	}
	return *s.edit, true
}

func (s *Store) SetDraftTitle(title string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.edit != nil {
		s.edit.Title = title
	}
}

func (s *Store) SetDraftContent(content string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.edit != nil {
		s.edit.Content = content
	}
}

// CancelEdit closes the modal and drops the draft.
func (s *Store) CancelEdit() {
	s.mutex.Lock()
	s.edit = nil
	s.mutex.Unlock()
}

// SaveEdit applies the open draft and closes the modal.
func (s *Store) SaveEdit(ctx context.Context) Result {
	draft, ok := s.Editing()
	if !ok {
		return Result{Reason: ReasonValidation, Err: ErrNotEditing}
	}
	return s.UpdateTaskContent(ctx, draft.TaskID, draft)
}
