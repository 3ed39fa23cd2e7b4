package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/infra/blob"
	"github.com/evotodo/todo-api/internal/modules/model"
	"go.uber.org/zap"
)

var csvHeader = []string{"ID", "Title", "Description", "Priority", "Due Date", "Tags", "Completed", "Created At"}

// exportTask fixes the JSON field order of exports.
type exportTask struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Tags        []string   `json:"tags"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *taskService) ExportCSV(ctx context.Context, userID string) ([]byte, error) {
	tasks, err := s.r.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return encodeCSV(tasks)
}

func encodeCSV(tasks []model.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			desc,
			t.Priority,
			due,
			strings.Join(t.Tags, ","),
			strconv.FormatBool(t.Completed),
			t.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *taskService) ExportJSON(ctx context.Context, userID string) ([]byte, error) {
	tasks, err := s.r.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return encodeJSON(tasks)
}

func encodeJSON(tasks []model.Task) ([]byte, error) {
	out := make([]exportTask, 0, len(tasks))
	for _, t := range tasks {
		tags := []string(t.Tags)
		if tags == nil {
			tags = []string{}
		}
		out = append(out, exportTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
			Tags:        tags,
			Completed:   t.Completed,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	return sonic.ConfigStd.MarshalIndent(out, "", "  ")
}

type ImportTaskItem struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
	Completed   bool     `json:"completed"`
}

type ImportResult struct {
	Message  string   `json:"message"`
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// ImportJSON creates one task per item. Failing items are reported in
// Errors and do not stop the rest.
func (s *taskService) ImportJSON(ctx context.Context, userID string, items []ImportTaskItem) (*ImportResult, error) {
	res := &ImportResult{Errors: []string{}}
	for _, it := range items {
		title := it.Title
		if strings.TrimSpace(title) == "" {
			title = "Untitled"
		}

		due, err := ParseDueDate(it.DueDate)
		if err == nil {
			_, err = s.Create(ctx, CreateTaskInput{
				UserID:      userID,
				Title:       title,
				Description: it.Description,
				Priority:    it.Priority,
				DueDate:     due,
				Tags:        it.Tags,
				Completed:   it.Completed,
			})
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Error importing task '%s': %s", title, importReason(err)))
			continue
		}
		res.Imported++
	}
	res.Message = fmt.Sprintf("Successfully imported %d task(s)", res.Imported)
	if res.Imported > 0 {
		s.events.emit(ctx, EventTaskImported, TaskEvent{Type: EventTaskImported, UserID: userID, At: time.Now()})
	}
	return res, nil
}

func importReason(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Msg
	}
	return "internal error"
}

// SnapshotStore is satisfied by *blob.S3Deps.
type SnapshotStore interface {
	UploadBytes(ctx context.Context, keyPrefix, ext, contentType string, data []byte) (*blob.UploadedMeta, error)
	PresignGet(ctx context.Context, key string, expire time.Duration) (string, error)
}

type ExportSnapshot struct {
	Format    string    `json:"format"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	SHA256    string    `json:"sha256"`
	SizeB     int64     `json:"size_b"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportSnapshot uploads an export to object storage and returns a
// short-lived download link.
func (s *taskService) ExportSnapshot(ctx context.Context, userID string, format string) (*ExportSnapshot, error) {
	if s.snaps == nil {
		return nil, ErrUnavailable
	}

	var (
		data        []byte
		err         error
		ext         string
		contentType string
	)
	switch strings.ToLower(format) {
	case "", "json":
		format, ext, contentType = "json", ".json", "application/json"
		data, err = s.ExportJSON(ctx, userID)
	case "csv":
		format, ext, contentType = "csv", ".csv", "text/csv"
		data, err = s.ExportCSV(ctx, userID)
	default:
		return nil, invalid("Format must be one of: csv, json")
	}
	if err != nil {
		return nil, err
	}

	meta, err := s.snaps.UploadBytes(ctx, "exports/"+userID, ext, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	expire := s.expire()
	url, err := s.snaps.PresignGet(ctx, meta.Key, expire)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	s.log.Info("export snapshot stored", zap.String("user_id", userID), zap.String("key", meta.Key), zap.Int64("size_b", meta.SizeB))
	return &ExportSnapshot{
		Format:    format,
		Key:       meta.Key,
		URL:       url,
		SHA256:    meta.SHA256,
		SizeB:     meta.SizeB,
		ExpiresAt: time.Now().Add(expire).UTC(),
	}, nil
}
