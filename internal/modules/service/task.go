package service

import (
	"context"
	"time"

	"github.com/evotodo/todo-api/internal/infra/cache"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/repo"
	"github.com/evotodo/todo-api/internal/pkg/paging"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type TaskService interface {
	Create(ctx context.Context, in CreateTaskInput) (*model.Task, error)
	Get(ctx context.Context, userID string, id int64) (*model.Task, error)
	List(ctx context.Context, in ListTasksInput) (*ListTasksOutput, error)
	Update(ctx context.Context, in UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	ToggleComplete(ctx context.Context, userID string, id int64) (*model.Task, error)
	BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error)
	BulkComplete(ctx context.Context, userID string, ids []int64, completed bool) (int64, error)
	Stats(ctx context.Context, userID string) (*TaskStats, error)
	ExportCSV(ctx context.Context, userID string) ([]byte, error)
	ExportJSON(ctx context.Context, userID string) ([]byte, error)
	ImportJSON(ctx context.Context, userID string, items []ImportTaskItem) (*ImportResult, error)
	ExportSnapshot(ctx context.Context, userID string, format string) (*ExportSnapshot, error)
}

// TaskServiceDeps holds the optional collaborators; any of them may be nil.
type TaskServiceDeps struct {
	Events        EventPublisher
	Exchange      string
	Stats         *cache.JSONCache
	Snapshots     SnapshotStore
	PresignExpire func() time.Duration
}

type taskService struct {
	r      repo.TaskRepo
	log    *zap.Logger
	events eventSink
	stats  *cache.JSONCache
	snaps  SnapshotStore
	expire func() time.Duration
}

func NewTaskService(r repo.TaskRepo, log *zap.Logger, deps TaskServiceDeps) TaskService {
	expire := deps.PresignExpire
	if expire == nil {
		expire = func() time.Duration { return 15 * time.Minute }
	}
	return &taskService{
		r:      r,
		log:    log,
		events: eventSink{pub: deps.Events, exchange: deps.Exchange, log: log},
		stats:  deps.Stats,
		snaps:  deps.Snapshots,
		expire: expire,
	}
}

type CreateTaskInput struct {
	UserID      string
	Title       string
	Description *string
	Priority    string
	DueDate     *time.Time
	Tags        []string
	Completed   bool
}

func (s *taskService) Create(ctx context.Context, in CreateTaskInput) (*model.Task, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	t := &model.Task{
		UserID:      in.UserID,
		Title:       title,
		Description: desc,
		Priority:    priority,
		DueDate:     in.DueDate,
		Tags:        tags,
		Completed:   in.Completed,
	}
	if err := s.r.Create(ctx, t); err != nil {
		return nil, err
	}

	s.touched(ctx, in.UserID)
	s.events.emit(ctx, EventTaskCreated, TaskEvent{Type: EventTaskCreated, UserID: in.UserID, TaskIDs: []int64{t.ID}, Title: t.Title, At: t.CreatedAt})
	return t, nil
}

func (s *taskService) Get(ctx context.Context, userID string, id int64) (*model.Task, error) {
	t, err := s.r.Get(ctx, userID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

type ListTasksInput struct {
	UserID string
	Status string
	Sort   string
	Search string
	Page   int
	Limit  int
}

type ListTasksOutput struct {
	Items []model.Task `json:"tasks"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	// Completed and Pending count the returned page only.
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

func (s *taskService) List(ctx context.Context, in ListTasksInput) (*ListTasksOutput, error) {
	f := repo.TaskFilter{UserID: in.UserID, Search: in.Search}

	switch in.Status {
	case "", StatusAll:
	case StatusPending:
		v := false
		f.Completed = &v
	case StatusCompleted:
		v := true
		f.Completed = &v
	default:
		return nil, invalid(msgStatusFilter)
	}

	switch in.Sort {
	case "", repo.SortCreated:
		f.Sort = repo.SortCreated
	case repo.SortTitle, repo.SortUpdated, repo.SortPriority, repo.SortDueDate:
		f.Sort = in.Sort
	default:
		return nil, invalid("Sort must be one of: created, title, updated, priority, due_date")
	}

	p := paging.Normalize(in.Page, in.Limit)
	f.Offset, f.Limit = p.Offset(), p.Limit

	items, total, err := s.r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Task{}
	}

	out := &ListTasksOutput{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
	for _, t := range items {
		if t.Completed {
			out.Completed++
		}
	}
	out.Pending = len(items) - out.Completed
	return out, nil
}

// UpdateTaskInput changes only the non-nil fields. A non-nil empty Tags
// clears the tags; nil leaves them untouched.
type UpdateTaskInput struct {
	UserID      string
	ID          int64
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	Tags        *[]string
	Completed   *bool
}

func (s *taskService) Update(ctx context.Context, in UpdateTaskInput) (*model.Task, error) {
	changes := map[string]interface{}{}
	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		changes["title"] = title
	}
	if in.Description != nil {
		desc, err := normalizeDescription(in.Description)
		if err != nil {
			return nil, err
		}
		changes["description"] = desc
	}
	if in.Priority != nil {
		p, err := normalizePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		changes["priority"] = p
	}
	if in.ClearDue {
		changes["due_date"] = nil
	} else if in.DueDate != nil {
		changes["due_date"] = *in.DueDate
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		changes["tags"] = datatypes.JSONSlice[string](tags)
	}
	if in.Completed != nil {
		changes["completed"] = *in.Completed
	}

	t, err := s.r.Update(ctx, in.UserID, in.ID, func(*model.Task) (map[string]interface{}, error) {
		return changes, nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	s.touched(ctx, in.UserID)
	s.events.emit(ctx, EventTaskUpdated, TaskEvent{Type: EventTaskUpdated, UserID: in.UserID, TaskIDs: []int64{t.ID}, Title: t.Title, At: t.UpdatedAt})
	return t, nil
}

func (s *taskService) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	n, err := s.r.Delete(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	s.touched(ctx, userID)
	s.events.emit(ctx, EventTaskDeleted, TaskEvent{Type: EventTaskDeleted, UserID: userID, TaskIDs: []int64{id}, At: time.Now()})
	return true, nil
}

func (s *taskService) ToggleComplete(ctx context.Context, userID string, id int64) (*model.Task, error) {
	t, err := s.r.Update(ctx, userID, id, func(cur *model.Task) (map[string]interface{}, error) {
		return map[string]interface{}{"completed": !cur.Completed}, nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	s.touched(ctx, userID)
	completed := t.Completed
	s.events.emit(ctx, EventTaskCompleted, TaskEvent{Type: EventTaskCompleted, UserID: userID, TaskIDs: []int64{t.ID}, Title: t.Title, Completed: &completed, At: t.UpdatedAt})
	return t, nil
}

func (s *taskService) BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error) {
	n, err := s.r.BulkDelete(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.touched(ctx, userID)
		s.events.emit(ctx, EventTaskDeleted, TaskEvent{Type: EventTaskDeleted, UserID: userID, TaskIDs: ids, At: time.Now()})
	}
	return n, nil
}

func (s *taskService) BulkComplete(ctx context.Context, userID string, ids []int64, completed bool) (int64, error) {
	n, err := s.r.BulkSetCompleted(ctx, userID, ids, completed)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.touched(ctx, userID)
		s.events.emit(ctx, EventTaskCompleted, TaskEvent{Type: EventTaskCompleted, UserID: userID, TaskIDs: ids, Completed: &completed, At: time.Now()})
	}
	return n, nil
}

type TaskStats struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Pending        int64 `json:"pending"`
	CompletionRate int64 `json:"completion_rate"`
}

func (s *taskService) Stats(ctx context.Context, userID string) (*TaskStats, error) {
	gen, err := s.stats.Generation(ctx, userID)
	useCache := err == nil
	if err != nil {
		s.log.Warn("stats cache generation read failed", zap.String("user_id", userID), zap.Error(err))
	}
	key := cache.VersionedKey(userID, gen)

	if useCache {
		var cached TaskStats
		if hit, err := s.stats.Get(ctx, key, &cached); err != nil {
			s.log.Warn("stats cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	total, completed, err := s.r.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &TaskStats{Total: total, Completed: completed, Pending: total - completed}
	if total > 0 {
		out.CompletionRate = completed * 100 / total
	}

	if useCache {
		if err := s.stats.Set(ctx, key, out); err != nil {
			s.log.Warn("stats cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return out, nil
}

// touched retires derived per-user state after a mutation.
func (s *taskService) touched(ctx context.Context, userID string) {
	if err := s.stats.Bump(context.WithoutCancel(ctx), userID); err != nil {
		s.log.Warn("stats cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
