package repo

import (
	"context"
	"strings"
	"time"

	"github.com/evotodo/todo-api/internal/infra/db"
	"github.com/evotodo/todo-api/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SortCreated  = "created"
	SortUpdated  = "updated"
	SortTitle    = "title"
	SortPriority = "priority"
	SortDueDate  = "due_date"
)

// priorityRank maps the enum to an ordinal; lexical order would put
// "high" < "low" < "medium".
const priorityRank = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"

type TaskFilter struct {
	UserID    string
	Completed *bool
	Search    string
	Sort      string
	Offset    int
	Limit     int
}

// TaskMutator inspects the locked row and returns the columns to change.
// Returning an error aborts the transaction.
type TaskMutator func(t *model.Task) (map[string]interface{}, error)

type TaskRepo interface {
	Create(ctx context.Context, t *model.Task) error
	Get(ctx context.Context, userID string, id int64) (*model.Task, error)
	List(ctx context.Context, f TaskFilter) ([]model.Task, int64, error)
	ListAll(ctx context.Context, userID string) ([]model.Task, error)
	Update(ctx context.Context, userID string, id int64, mutate TaskMutator) (*model.Task, error)
	Delete(ctx context.Context, userID string, id int64) (int64, error)
	BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error)
	BulkSetCompleted(ctx context.Context, userID string, ids []int64, completed bool) (int64, error)
	CountByStatus(ctx context.Context, userID string) (total int64, completed int64, err error)
}

type taskRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskRepo(db *gorm.DB) TaskRepo {
	return &taskRepo{db: db, now: time.Now}
}

func (r *taskRepo) Create(ctx context.Context, t *model.Task) error {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// Get returns gorm.ErrRecordNotFound for both missing and foreign rows.
func (r *taskRepo) Get(ctx context.Context, userID string, id int64) (*model.Task, error) {
	var t model.Task
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) List(ctx context.Context, f TaskFilter) ([]model.Task, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", f.UserID)
		if f.Completed != nil {
			q = q.Where("completed = ?", *f.Completed)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
			lower := lowerFunc(r.db)
			q = q.Where("("+lower+"(title) LIKE ? ESCAPE '\\' OR "+lower+"(COALESCE(description, '')) LIKE ? ESCAPE '\\')", pattern, pattern)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base()
	for _, o := range orderClauses(f.Sort) {
		q = q.Order(o)
	}

	var items []model.Task
	if err := q.Offset(f.Offset).Limit(f.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every task of the owner in default (newest first) order.
func (r *taskRepo) ListAll(ctx context.Context, userID string) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	for _, o := range orderClauses(SortCreated) {
		q = q.Order(o)
	}
	var items []model.Task
	return items, q.Find(&items).Error
}

func (r *taskRepo) Update(ctx context.Context, userID string, id int64, mutate TaskMutator) (*model.Task, error) {
	var out model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() == "postgres" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := locked.Where("id = ? AND user_id = ?", id, userID).First(&out).Error; err != nil {
			return err
		}

		changes, err := mutate(&out)
		if err != nil {
			return err
		}
		if changes == nil {
			changes = map[string]interface{}{}
		}
		changes["updated_at"] = NextTimestamp(out.UpdatedAt, r.now())

		if err := tx.Model(&model.Task{}).Where("id = ? AND user_id = ?", id, userID).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *taskRepo) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Task{})
	return res.RowsAffected, res.Error
}

func (r *taskRepo) BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.Task{})
	return res.RowsAffected, res.Error
}

// BulkSetCompleted advances each row's updated_at through NextTimestamp, the
// same way Update does.
func (r *taskRepo) BulkSetCompleted(ctx context.Context, userID string, ids []int64, completed bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() == "postgres" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rows []model.Task
		if err := locked.Select("id", "updated_at").
			Where("user_id = ? AND id IN ?", userID, ids).
			Find(&rows).Error; err != nil {
			return err
		}

		now := r.now()
		for _, row := range rows {
			res := tx.Model(&model.Task{}).
				Where("id = ? AND user_id = ?", row.ID, userID).
				Updates(map[string]interface{}{
					"completed":  completed,
					"updated_at": NextTimestamp(row.UpdatedAt, now),
				})
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *taskRepo) CountByStatus(ctx context.Context, userID string) (int64, int64, error) {
	var total, completed int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ? AND completed = ?", userID, true).Count(&completed).Error; err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

func orderClauses(sort string) []string {
	switch sort {
	case SortTitle:
		return []string{"title ASC", "id ASC"}
	case SortUpdated:
		return []string{"updated_at DESC", "id DESC"}
	case SortPriority:
		return []string{priorityRank + " DESC", "created_at DESC", "id DESC"}
	case SortDueDate:
		return []string{"CASE WHEN due_date IS NULL THEN 1 ELSE 0 END", "due_date ASC", "id ASC"}
	default:
		return []string{"created_at DESC", "id DESC"}
	}
}

// lowerFunc picks a case fold matching strings.ToLower on the pattern side.
func lowerFunc(d *gorm.DB) string {
	if d.Dialector.Name() == "sqlite" {
		return db.UnicodeLower
	}
	return "LOWER"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// NextTimestamp returns now, or prev+1µs when the clock has not moved past
// prev, so stored timestamps strictly advance at database precision.
func NextTimestamp(prev, now time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
