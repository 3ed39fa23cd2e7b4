package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/infra/blob"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleTasks() []model.Task {
	desc := "two litres, with a comma"
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []model.Task{
		{ID: 2, Title: "Buy milk", Description: &desc, Priority: model.PriorityHigh, DueDate: &due, Tags: []string{"home", "errand"}, CreatedAt: created, UpdatedAt: created},
		{ID: 1, Title: "Call mom", Priority: model.PriorityMedium, Completed: true, CreatedAt: created, UpdatedAt: created},
	}
}

func TestTaskService_ExportCSV(t *testing.T) {
	r := &MockTaskRepo{}
	r.On("ListAll", mock.Anything, "u1").Return(sampleTasks(), nil)
	svc := NewTaskService(r, zap.NewNop(), TaskServiceDeps{})

	raw, err := svc.ExportCSV(context.Background(), "u1")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2", "Buy milk", "two litres, with a comma", "high", "2026-03-01T00:00:00Z", "home,errand", "false", "2026-02-01T10:00:00Z"}, rows[1])
	assert.Equal(t, []string{"1", "Call mom", "", "medium", "", "", "true", "2026-02-01T10:00:00Z"}, rows[2])
}

func TestTaskService_ExportJSON(t *testing.T) {
	r := &MockTaskRepo{}
	r.On("ListAll", mock.Anything, "u1").Return(sampleTasks(), nil)
	svc := NewTaskService(r, zap.NewNop(), TaskServiceDeps{})

	raw, err := svc.ExportJSON(context.Background(), "u1")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Buy milk", got[0]["title"])
	assert.Equal(t, []any{}, got[1]["tags"])
	assert.Nil(t, got[1]["description"])
	assert.Contains(t, string(raw), "\n  {")
}

func TestTaskService_ImportJSON(t *testing.T) {
	r := &MockTaskRepo{}
	r.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).Return(nil)
	pub := &MockPublisher{}
	pub.On("PublishJSON", mock.Anything, "ex", mock.Anything, mock.Anything).Return(nil)
	svc := NewTaskService(r, zap.NewNop(), TaskServiceDeps{Events: pub, Exchange: "ex"})

	res, err := svc.ImportJSON(context.Background(), "u1", []ImportTaskItem{
		{Title: "ok"},
		{Title: ""},
		{Title: "bad prio", Priority: "urgent"},
		{Title: "bad due", DueDate: "tomorrow"},
		{Title: "dated", DueDate: "2026-05-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, "Successfully imported 3 task(s)", res.Message)
	assert.Equal(t, []string{
		"Error importing task 'bad prio': Priority must be one of: low, medium, high",
		"Error importing task 'bad due': Due date must be RFC3339 or YYYY-MM-DD",
	}, res.Errors)

	r.AssertNumberOfCalls(t, "Create", 3)
	created := r.Calls[1].Arguments.Get(1).(*model.Task)
	assert.Equal(t, "Untitled", created.Title)
	pub.AssertCalled(t, "PublishJSON", mock.Anything, "ex", EventTaskImported, mock.Anything)
}

func TestTaskService_ImportJSONStoreFailure(t *testing.T) {
	r := &MockTaskRepo{}
	r.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc := NewTaskService(r, zap.NewNop(), TaskServiceDeps{})

	res, err := svc.ImportJSON(context.Background(), "u1", []ImportTaskItem{{Title: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, []string{"Error importing task 'a': internal error"}, res.Errors)
}

func TestTaskService_ExportSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured", func(t *testing.T) {
		svc := NewTaskService(&MockTaskRepo{}, zap.NewNop(), TaskServiceDeps{})
		_, err := svc.ExportSnapshot(ctx, "u1", "json")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("bad format", func(t *testing.T) {
		svc := NewTaskService(&MockTaskRepo{}, zap.NewNop(), TaskServiceDeps{Snapshots: &MockSnapshotStore{}})
		_, err := svc.ExportSnapshot(ctx, "u1", "xml")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("csv upload", func(t *testing.T) {
		r := &MockTaskRepo{}
		r.On("ListAll", mock.Anything, "u1").Return(sampleTasks(), nil)
		store := &MockSnapshotStore{}
		store.On("UploadBytes", mock.Anything, "exports/u1", ".csv", "text/csv", mock.Anything).
			Return(&blob.UploadedMeta{Key: "exports/u1/2026/10/18/abc.csv", SHA256: "abc", SizeB: 42}, nil)
		store.On("PresignGet", mock.Anything, "exports/u1/2026/10/18/abc.csv", 5*time.Minute).
			Return("https://example.test/abc.csv", nil)

		svc := NewTaskService(r, zap.NewNop(), TaskServiceDeps{
			Snapshots:     store,
			PresignExpire: func() time.Duration { return 5 * time.Minute },
		})
		snap, err := svc.ExportSnapshot(ctx, "u1", "CSV")
		require.NoError(t, err)
		assert.Equal(t, "csv", snap.Format)
		assert.Equal(t, "https://example.test/abc.csv", snap.URL)
		assert.Equal(t, int64(42), snap.SizeB)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), snap.ExpiresAt, 5*time.Second)
		store.AssertExpectations(t)
	})
}
