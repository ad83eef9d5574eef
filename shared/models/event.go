package models

const (
	EventTodoCreated = "todo_created"
	EventTodoUpdated = "todo_updated"
	EventTodoDeleted = "todo_deleted"
)

// Event is pushed to websocket subscribers after every mutation.
// For deletions only Todo.ID is set.
type Event struct {
	Event string `json:"event"`
	Todo  Task   `json:"todo"`
}
