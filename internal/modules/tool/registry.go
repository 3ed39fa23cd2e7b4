package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/modules/service"
	"github.com/evotodo/todo-api/internal/pkg/paging"
	"go.uber.org/zap"
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ParseArguments decodes the raw JSON argument string of a tool call. An
// empty string is an empty argument set.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := sonic.UnmarshalString(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

type runFunc func(ctx context.Context, userID string, args map[string]any) (any, error)

type definition struct {
	schema  Schema
	failure string
	run     runFunc
}

// Registry executes the task tools on behalf of a user. The owner is always
// the userID passed to Execute; a user_id inside the arguments is ignored.
type Registry struct {
	tasks service.TaskService
	log   *zap.Logger
	order []string
	defs  map[string]definition
}

func NewRegistry(tasks service.TaskService, log *zap.Logger) *Registry {
	r := &Registry{tasks: tasks, log: log, defs: map[string]definition{}}
	r.register(addTaskSchema, "Failed to create task. Please try again.", r.addTask)
	r.register(listTasksSchema, "Failed to retrieve tasks. Please try again.", r.listTasks)
	r.register(completeTaskSchema, "Failed to complete task. Please try again.", r.completeTask)
	r.register(deleteTaskSchema, "Failed to delete task. Please try again.", r.deleteTask)
	r.register(updateTaskSchema, "Failed to update task. Please try again.", r.updateTask)
	return r
}

func (r *Registry) register(s Schema, failure string, run runFunc) {
	r.order = append(r.order, s.Name)
	r.defs[s.Name] = definition{schema: s, failure: failure, run: run}
}

func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].schema)
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Execute runs call for userID. It never returns a Go error and never panics.
func (r *Registry) Execute(ctx context.Context, userID string, call Call) (res Result) {
	def, ok := r.defs[call.Name]
	if !ok {
		return Fail(KindValidation, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tool panicked",
				zap.String("tool", call.Name),
				zap.String("user_id", userID),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			res = Fail(KindInternal, def.failure)
		}
	}()

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	v, err := def.run(ctx, userID, args)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return Fail(KindValidation, verr.Msg)
		case errors.Is(err, service.ErrNotFound):
			return Fail(KindNotFound, "Task not found")
		default:
			r.log.Error("tool failed", zap.String("tool", call.Name), zap.String("user_id", userID), zap.Error(err))
			return Fail(KindInternal, def.failure)
		}
	}
	r.log.Sugar().Infow("tool executed", "tool", call.Name, "user_id", userID)
	return Ok(v)
}

func (r *Registry) addTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	title, err := stringArg(args, "title")
	if err != nil {
		return nil, err
	}
	if title == nil || strings.TrimSpace(*title) == "" {
		return nil, invalidArg("title is required")
	}
	desc, err := stringArg(args, "description")
	if err != nil {
		return nil, err
	}

	t, err := r.tasks.Create(ctx, service.CreateTaskInput{UserID: userID, Title: *title, Description: desc})
	if err != nil {
		return nil, err
	}
	return Mutation{TaskID: t.ID, Status: StatusCreated, Title: t.Title}, nil
}

func (r *Registry) listTasks(ctx context.Context, userID string, args map[string]any) (any, error) {
	status, err := stringArg(args, "status")
	if err != nil {
		return nil, err
	}
	filter := service.StatusAll
	if status != nil && *status != "" {
		filter = strings.ToLower(*status)
	}
	switch filter {
	case service.StatusAll, service.StatusPending, service.StatusCompleted:
	default:
		return nil, invalidArg("status must be 'all', 'pending', or 'completed'")
	}

	out, err := r.tasks.List(ctx, service.ListTasksInput{UserID: userID, Status: filter, Limit: paging.MaxLimit})
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(out.Items))
	for _, t := range out.Items {
		views = append(views, viewOf(t))
	}
	return views, nil
}

func (r *Registry) completeTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	id, err := taskIDArg(args)
	if err != nil {
		return nil, err
	}
	t, err := r.tasks.ToggleComplete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	status := StatusPending
	if t.Completed {
		status = StatusCompleted
	}
	return Mutation{TaskID: t.ID, Status: status, Title: t.Title}, nil
}

func (r *Registry) deleteTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	id, err := taskIDArg(args)
	if err != nil {
		return nil, err
	}
	t, err := r.tasks.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	ok, err := r.tasks.Delete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, service.ErrNotFound
	}
	return Mutation{TaskID: id, Status: StatusDeleted, Title: t.Title}, nil
}

func (r *Registry) updateTask(ctx context.Context, userID string, args map[string]any) (any, error) {
	id, err := taskIDArg(args)
	if err != nil {
		return nil, err
	}
	title, err := stringArg(args, "title")
	if err != nil {
		return nil, err
	}
	desc, err := stringArg(args, "description")
	if err != nil {
		return nil, err
	}
	if title == nil && desc == nil {
		return nil, invalidArg("Provide a new title or description")
	}

	t, err := r.tasks.Update(ctx, service.UpdateTaskInput{UserID: userID, ID: id, Title: title, Description: desc})
	if err != nil {
		return nil, err
	}
	return Mutation{TaskID: t.ID, Status: StatusUpdated, Title: t.Title}, nil
}

func invalidArg(msg string) error { return &service.ValidationError{Msg: msg} }

// stringArg returns nil when key is absent or null.
func stringArg(args map[string]any, key string) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, invalidArg(key + " must be a string")
	}
	return &s, nil
}

// taskIDArg accepts a JSON number or a numeric string.
func taskIDArg(args map[string]any) (int64, error) {
	raw, ok := args["task_id"]
	if !ok || raw == nil {
		return 0, invalidArg("task_id is required")
	}

	var id int64
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, invalidArg("task_id must be a positive integer")
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, invalidArg("task_id must be a positive integer")
		}
		id = n
	default:
		return 0, invalidArg("task_id must be a positive integer")
	}
	if id <= 0 {
		return 0, invalidArg("task_id must be a positive integer")
	}
	return id, nil
}
