package tool

import (
	"time"

	"github.com/evotodo/todo-api/internal/modules/model"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is the failure half of a Result. Message is always safe to show.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Result is either a success payload or an Error, never both.
type Result struct {
	value any
	err   *Error
}

func Ok(v any) Result { return Result{value: v} }

func Fail(kind Kind, msg string) Result { return Result{err: &Error{Kind: kind, Message: msg}} }

func (r Result) Value() any { return r.value }

func (r Result) Err() *Error { return r.err }

func (r Result) IsErr() bool { return r.err != nil }

// Payload is the wire form: the value itself or {"error": message}.
func (r Result) Payload() any {
	if r.err != nil {
		return map[string]any{"error": r.err.Message}
	}
	return r.value
}

// TaskView is the task shape returned by list_tasks.
type TaskView struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

func viewOf(t model.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
	}
}

// Mutation is returned by every tool that changes a single task.
type Mutation struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

const (
	StatusCreated   = "created"
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusDeleted   = "deleted"
	StatusUpdated   = "updated"
)
