package tool

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/evotodo/todo-api/internal/config"
	dbpkg "github.com/evotodo/todo-api/internal/infra/db"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/repo"
	"github.com/evotodo/todo-api/internal/modules/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (*Registry, service.TaskService) {
	t.Helper()
	d, err := dbpkg.New(&config.Config{Database: config.DBCfg{
		DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}})
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	tasks := service.NewTaskService(repo.NewTaskRepo(d), zap.NewNop(), service.TaskServiceDeps{})
	return NewRegistry(tasks, zap.NewNop()), tasks
}

// stubTasks overrides single TaskService methods; anything else panics.
type stubTasks struct {
	service.TaskService
	create func(context.Context, service.CreateTaskInput) (*model.Task, error)
	toggle func(context.Context, string, int64) (*model.Task, error)
}

func (s stubTasks) Create(ctx context.Context, in service.CreateTaskInput) (*model.Task, error) {
	return s.create(ctx, in)
}

func (s stubTasks) ToggleComplete(ctx context.Context, userID string, id int64) (*model.Task, error) {
	return s.toggle(ctx, userID, id)
}

func TestRegistry_Schemas(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())

	assert.Equal(t, []string{AddTask, ListTasks, CompleteTask, DeleteTask, UpdateTask}, r.Names())
	schemas := r.Schemas()
	require.Len(t, schemas, 5)
	assert.Equal(t, []string{"title"}, schemas[0].Parameters["required"])
	assert.NotContains(t, schemas[1].Parameters, "required")
	for _, s := range schemas[2:] {
		assert.Equal(t, []string{"task_id"}, s.Parameters["required"], s.Name)
	}
}

func TestRegistry_TaskLifecycle(t *testing.T) {
	r, tasks := newTestRegistry(t)
	ctx := context.Background()

	res := r.Execute(ctx, "u1", Call{Name: AddTask, Arguments: map[string]any{"title": "Buy milk", "user_id": "mallory"}})
	require.False(t, res.IsErr(), res.Payload())
	added := res.Value().(Mutation)
	assert.Equal(t, StatusCreated, added.Status)
	assert.Equal(t, "Buy milk", added.Title)

	// owner comes from the caller, not the arguments
	_, err := tasks.Get(ctx, "u1", added.TaskID)
	require.NoError(t, err)
	_, err = tasks.Get(ctx, "mallory", added.TaskID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	res = r.Execute(ctx, "u1", Call{Name: ListTasks, Arguments: map[string]any{"status": "pending"}})
	require.False(t, res.IsErr())
	views := res.Value().([]TaskView)
	require.Len(t, views, 1)
	assert.Equal(t, added.TaskID, views[0].ID)
	assert.Equal(t, model.PriorityMedium, views[0].Priority)

	res = r.Execute(ctx, "u1", Call{Name: CompleteTask, Arguments: map[string]any{"task_id": float64(added.TaskID)}})
	require.False(t, res.IsErr())
	assert.Equal(t, StatusCompleted, res.Value().(Mutation).Status)

	res = r.Execute(ctx, "u1", Call{Name: UpdateTask, Arguments: map[string]any{"task_id": float64(added.TaskID), "title": "Buy oat milk"}})
	require.False(t, res.IsErr())
	assert.Equal(t, Mutation{TaskID: added.TaskID, Status: StatusUpdated, Title: "Buy oat milk"}, res.Value())

	res = r.Execute(ctx, "u1", Call{Name: DeleteTask, Arguments: map[string]any{"task_id": float64(added.TaskID)}})
	require.False(t, res.IsErr())
	assert.Equal(t, Mutation{TaskID: added.TaskID, Status: StatusDeleted, Title: "Buy oat milk"}, res.Value())

	res = r.Execute(ctx, "u1", Call{Name: DeleteTask, Arguments: map[string]any{"task_id": float64(added.TaskID)}})
	require.True(t, res.IsErr())
	assert.Equal(t, KindNotFound, res.Err().Kind)
	assert.Equal(t, map[string]any{"error": "Task not found"}, res.Payload())

	res = r.Execute(ctx, "u1", Call{Name: ListTasks})
	require.False(t, res.IsErr())
	assert.Equal(t, []TaskView{}, res.Value())
}

func TestRegistry_ForeignTaskIsNotFound(t *testing.T) {
	r, tasks := newTestRegistry(t)
	ctx := context.Background()

	task, err := tasks.Create(ctx, service.CreateTaskInput{UserID: "alice", Title: "private"})
	require.NoError(t, err)

	for _, name := range []string{CompleteTask, DeleteTask} {
		res := r.Execute(ctx, "bob", Call{Name: name, Arguments: map[string]any{"task_id": float64(task.ID)}})
		require.True(t, res.IsErr(), name)
		assert.Equal(t, "Task not found", res.Err().Message)
	}
	res := r.Execute(ctx, "bob", Call{Name: UpdateTask, Arguments: map[string]any{"task_id": float64(task.ID), "title": "x"}})
	assert.Equal(t, KindNotFound, res.Err().Kind)

	got, err := tasks.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
	assert.False(t, got.Completed)
}

func TestRegistry_ArgumentValidation(t *testing.T) {
	r, tasks := newTestRegistry(t)
	ctx := context.Background()
	task, err := tasks.Create(ctx, service.CreateTaskInput{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	tests := []struct {
		name string
		call Call
		want string
	}{
		{name: "unknown tool", call: Call{Name: "drop_table"}, want: "Unknown tool: drop_table"},
		{name: "missing title", call: Call{Name: AddTask}, want: "title is required"},
		{name: "title not string", call: Call{Name: AddTask, Arguments: map[string]any{"title": 3.0}}, want: "title must be a string"},
		{name: "long title", call: Call{Name: AddTask, Arguments: map[string]any{"title": strings.Repeat("a", 201)}}, want: "Title must be 1-200 characters"},
		{name: "bad status", call: Call{Name: ListTasks, Arguments: map[string]any{"status": "done"}}, want: "status must be 'all', 'pending', or 'completed'"},
		{name: "missing task id", call: Call{Name: CompleteTask}, want: "task_id is required"},
		{name: "fractional task id", call: Call{Name: CompleteTask, Arguments: map[string]any{"task_id": 1.5}}, want: "task_id must be a positive integer"},
		{name: "negative task id", call: Call{Name: DeleteTask, Arguments: map[string]any{"task_id": -1.0}}, want: "task_id must be a positive integer"},
		{name: "task id past int64", call: Call{Name: CompleteTask, Arguments: map[string]any{"task_id": float64(1 << 63)}}, want: "task_id must be a positive integer"},
		{name: "word task id", call: Call{Name: DeleteTask, Arguments: map[string]any{"task_id": "one"}}, want: "task_id must be a positive integer"},
		{name: "update nothing", call: Call{Name: UpdateTask, Arguments: map[string]any{"task_id": float64(task.ID)}}, want: "Provide a new title or description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(ctx, "u1", tt.call)
			require.True(t, res.IsErr())
			assert.Equal(t, KindValidation, res.Err().Kind)
			assert.Equal(t, tt.want, res.Err().Message)
		})
	}

	// numeric strings are accepted
	res := r.Execute(ctx, "u1", Call{Name: CompleteTask, Arguments: map[string]any{"task_id": " " + strconv.FormatInt(task.ID, 10) + " "}})
	require.False(t, res.IsErr(), res.Payload())
	assert.Equal(t, StatusCompleted, res.Value().(Mutation).Status)
}

func TestRegistry_InternalFailures(t *testing.T) {
	r := NewRegistry(stubTasks{
		create: func(context.Context, service.CreateTaskInput) (*model.Task, error) {
			return nil, errors.New("connection reset")
		},
		toggle: func(context.Context, string, int64) (*model.Task, error) {
			panic("boom")
		},
	}, zap.NewNop())
	ctx := context.Background()

	res := r.Execute(ctx, "u1", Call{Name: AddTask, Arguments: map[string]any{"title": "x"}})
	require.True(t, res.IsErr())
	assert.Equal(t, KindInternal, res.Err().Kind)
	assert.Equal(t, "Failed to create task. Please try again.", res.Err().Message)

	res = r.Execute(ctx, "u1", Call{Name: CompleteTask, Arguments: map[string]any{"task_id": 4.0}})
	require.True(t, res.IsErr())
	assert.Equal(t, KindInternal, res.Err().Kind)
	assert.Equal(t, "Failed to complete task. Please try again.", res.Err().Message)
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments(`{"task_id": 3, "title": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, args["task_id"])
	assert.Equal(t, "x", args["title"])

	_, err = ParseArguments(`{"task_id":`)
	assert.Error(t, err)
}
