package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evotodo/todo-api/internal/middleware"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/modules/service"
)

// MockTaskService is a mock implementation of service.TaskService
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) Create(ctx context.Context, in service.CreateTaskInput) (*model.Task, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskService) Get(ctx context.Context, userID string, id int64) (*model.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskService) List(ctx context.Context, in service.ListTasksInput) (*service.ListTasksOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListTasksOutput), args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, in service.UpdateTaskInput) (*model.Task, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskService) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskService) ToggleComplete(ctx context.Context, userID string, id int64) (*model.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskService) BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskService) BulkComplete(ctx context.Context, userID string, ids []int64, completed bool) (int64, error) {
	args := m.Called(ctx, userID, ids, completed)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskService) Stats(ctx context.Context, userID string) (*service.TaskStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TaskStats), args.Error(1)
}

func (m *MockTaskService) ExportCSV(ctx context.Context, userID string) ([]byte, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTaskService) ExportJSON(ctx context.Context, userID string) ([]byte, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTaskService) ImportJSON(ctx context.Context, userID string, items []service.ImportTaskItem) (*service.ImportResult, error) {
	args := m.Called(ctx, userID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ImportResult), args.Error(1)
}

func (m *MockTaskService) ExportSnapshot(ctx context.Context, userID string, format string) (*service.ExportSnapshot, error) {
	args := m.Called(ctx, userID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportSnapshot), args.Error(1)
}

func setupTaskRouter(h *TaskHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/:user_id", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.Param("user_id"))
	})
	g.GET("/tasks", h.ListTasks)
	g.POST("/tasks", h.CreateTask)
	g.GET("/tasks/stats", h.Stats)
	g.GET("/tasks/export/csv", h.ExportCSV)
	g.POST("/tasks/export/snapshot", h.ExportSnapshot)
	g.POST("/tasks/import/json", h.ImportJSON)
	g.POST("/tasks/bulk/complete", h.BulkComplete)
	g.GET("/tasks/:task_id", h.GetTask)
	g.PUT("/tasks/:task_id", h.UpdateTask)
	g.DELETE("/tasks/:task_id", h.DeleteTask)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) serializer.Response {
	t.Helper()
	var res serializer.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestTaskHandler_CreateTask(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setup          func(*MockTaskService)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "successful creation",
			body: map[string]interface{}{"title": "Buy milk", "priority": "high", "due_date": "2026-11-01", "tags": []string{"errands"}},
			setup: func(svc *MockTaskService) {
				svc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateTaskInput) bool {
					return in.UserID == "u1" && in.Title == "Buy milk" && in.Priority == "high" &&
						in.DueDate != nil && in.DueDate.Format("2006-01-02") == "2026-11-01" &&
						len(in.Tags) == 1
				})).Return(&model.Task{ID: 1, UserID: "u1", Title: "Buy milk"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			body:           map[string]interface{}{"priority": "high"},
			setup:          func(svc *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad due date",
			body:           map[string]interface{}{"title": "x", "due_date": "next week"},
			setup:          func(svc *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Due date must be RFC3339 or YYYY-MM-DD",
		},
		{
			name: "validation error from service",
			body: map[string]interface{}{"title": "x", "priority": "urgent"},
			setup: func(svc *MockTaskService) {
				svc.On("Create", mock.Anything, mock.Anything).
					Return(nil, &service.ValidationError{Msg: "Priority must be one of: low, medium, high"})
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Priority must be one of: low, medium, high",
		},
		{
			name: "storage failure",
			body: map[string]interface{}{"title": "x"},
			setup: func(svc *MockTaskService) {
				svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTaskService{}
			tt.setup(svc)

			w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodPost, "/api/u1/tasks", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, decodeResponse(t, w).Msg)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_ListTasks(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setup          func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setup: func(svc *MockTaskService) {
				svc.On("List", mock.Anything, service.ListTasksInput{UserID: "u1", Status: "all", Sort: "created", Page: 1, Limit: 20}).
					Return(&service.ListTasksOutput{Items: []model.Task{}, Page: 1, Limit: 20}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filters passed through",
			query: "?status=pending&sort=priority&search=milk&page=2&limit=10",
			setup: func(svc *MockTaskService) {
				svc.On("List", mock.Anything, service.ListTasksInput{UserID: "u1", Status: "pending", Sort: "priority", Search: "milk", Page: 2, Limit: 10}).
					Return(&service.ListTasksOutput{Items: []model.Task{}, Page: 2, Limit: 10}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "limit too large",
			query:          "?limit=500",
			setup:          func(svc *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "bad status",
			query: "?status=done",
			setup: func(svc *MockTaskService) {
				svc.On("List", mock.Anything, mock.Anything).
					Return(nil, &service.ValidationError{Msg: "Status must be one of: all, pending, completed"})
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTaskService{}
			tt.setup(svc)

			w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodGet, "/api/u1/tasks"+tt.query, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_GetTask(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setup          func(*MockTaskService)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "found",
			path: "/api/u1/tasks/7",
			setup: func(svc *MockTaskService) {
				svc.On("Get", mock.Anything, "u1", int64(7)).Return(&model.Task{ID: 7, UserID: "u1", Title: "x"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/api/u1/tasks/8",
			setup: func(svc *MockTaskService) {
				svc.On("Get", mock.Anything, "u1", int64(8)).Return(nil, service.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Task 8 not found or access forbidden",
		},
		{
			name:           "non numeric id",
			path:           "/api/u1/tasks/abc",
			setup:          func(svc *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTaskService{}
			tt.setup(svc)

			w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, decodeResponse(t, w).Msg)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_UpdateTask(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		match          func(service.UpdateTaskInput) bool
		expectedStatus int
	}{
		{
			name: "title only",
			body: `{"title":"new"}`,
			match: func(in service.UpdateTaskInput) bool {
				return in.Title != nil && *in.Title == "new" && in.Tags == nil && in.DueDate == nil && !in.ClearDue
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "empty due date clears it",
			body: `{"due_date":""}`,
			match: func(in service.UpdateTaskInput) bool {
				return in.ClearDue && in.DueDate == nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "empty tags clear them",
			body: `{"tags":[]}`,
			match: func(in service.UpdateTaskInput) bool {
				return in.Tags != nil && len(*in.Tags) == 0
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad due date",
			body:           `{"due_date":"soon"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTaskService{}
			if tt.match != nil {
				svc.On("Update", mock.Anything, mock.MatchedBy(func(in service.UpdateTaskInput) bool {
					return in.UserID == "u1" && in.ID == 3 && tt.match(in)
				})).Return(&model.Task{ID: 3, UserID: "u1", Title: "t"}, nil)
			}

			req := httptest.NewRequest(http.MethodPut, "/api/u1/tasks/3", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			setupTaskRouter(NewTaskHandler(svc)).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	svc := &MockTaskService{}
	svc.On("Delete", mock.Anything, "u1", int64(5)).Return(true, nil).Once()
	svc.On("Delete", mock.Anything, "u1", int64(5)).Return(false, nil).Once()
	r := setupTaskRouter(NewTaskHandler(svc))

	w := doJSON(r, http.MethodDelete, "/api/u1/tasks/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task deleted successfully", decodeResponse(t, w).Msg)

	// second delete of the same id
	w = doJSON(r, http.MethodDelete, "/api/u1/tasks/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestTaskHandler_BulkComplete(t *testing.T) {
	svc := &MockTaskService{}
	svc.On("BulkComplete", mock.Anything, "u1", []int64{1, 2}, true).Return(int64(2), nil)
	svc.On("BulkComplete", mock.Anything, "u1", []int64{3}, false).Return(int64(1), nil)
	r := setupTaskRouter(NewTaskHandler(svc))

	w := doJSON(r, http.MethodPost, "/api/u1/tasks/bulk/complete", map[string]interface{}{"task_ids": []int64{1, 2}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Successfully updated 2 task(s)", decodeResponse(t, w).Msg)

	w = doJSON(r, http.MethodPost, "/api/u1/tasks/bulk/complete", map[string]interface{}{"task_ids": []int64{3}, "completed": false})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/u1/tasks/bulk/complete", map[string]interface{}{"task_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestTaskHandler_ExportCSV(t *testing.T) {
	svc := &MockTaskService{}
	svc.On("ExportCSV", mock.Anything, "u1").Return([]byte("ID,Title\n"), nil)

	w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodGet, "/api/u1/tasks/export/csv", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=tasks.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID,Title\n", w.Body.String())
}

func TestTaskHandler_ExportSnapshot(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setup          func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "no body defaults format",
			setup: func(svc *MockTaskService) {
				svc.On("ExportSnapshot", mock.Anything, "u1", "").Return(&service.ExportSnapshot{Format: "json", Key: "k"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "object storage not configured",
			body: map[string]string{"format": "csv"},
			setup: func(svc *MockTaskService) {
				svc.On("ExportSnapshot", mock.Anything, "u1", "csv").Return(nil, service.ErrUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTaskService{}
			tt.setup(svc)

			w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodPost, "/api/u1/tasks/export/snapshot", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_ImportJSON(t *testing.T) {
	svc := &MockTaskService{}
	svc.On("ImportJSON", mock.Anything, "u1", mock.MatchedBy(func(items []service.ImportTaskItem) bool {
		return len(items) == 2 && items[0].Title == "a"
	})).Return(&service.ImportResult{Message: "Successfully imported 2 task(s)", Imported: 2, Errors: []string{}}, nil)
	r := setupTaskRouter(NewTaskHandler(svc))

	w := doJSON(r, http.MethodPost, "/api/u1/tasks/import/json", []map[string]string{{"title": "a"}, {"title": "b"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Successfully imported 2 task(s)", decodeResponse(t, w).Msg)

	w = doJSON(r, http.MethodPost, "/api/u1/tasks/import/json", map[string]string{"title": "not an array"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestTaskHandler_Stats(t *testing.T) {
	svc := &MockTaskService{}
	svc.On("Stats", mock.Anything, "u1").Return(&service.TaskStats{Total: 4, Completed: 1, Pending: 3, CompletionRate: 25}, nil)

	w := doJSON(setupTaskRouter(NewTaskHandler(svc)), http.MethodGet, "/api/u1/tasks/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"","data":{"total":4,"completed":1,"pending":3,"completion_rate":25}}`, w.Body.String())
}
