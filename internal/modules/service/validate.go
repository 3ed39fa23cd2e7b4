package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/evotodo/todo-api/internal/modules/model"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MaxTags           = 20
	MaxTagLen         = 50
)

const (
	msgTitleLength  = "Title must be 1-200 characters"
	msgDescLength   = "Description must be max 1000 characters"
	msgPriority     = "Priority must be one of: low, medium, high"
	msgTooManyTags  = "At most 20 tags are allowed"
	msgTagLength    = "Tags must be 1-50 characters"
	msgDueDate      = "Due date must be RFC3339 or YYYY-MM-DD"
	msgStatusFilter = "Status must be one of: all, pending, completed"
)

func normalizeTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n == 0 || n > MaxTitleLen {
		return "", invalid(msgTitleLength)
	}
	return s, nil
}

// normalizeDescription trims and maps blank to nil.
func normalizeDescription(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > MaxDescriptionLen {
		return nil, invalid(msgDescLength)
	}
	return &v, nil
}

func normalizePriority(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return model.PriorityMedium, nil
	}
	if !model.ValidPriority(p) {
		return "", invalid(msgPriority)
	}
	return p, nil
}

// normalizeTags trims, drops blanks and de-duplicates while keeping order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLen {
			return nil, invalid(msgTagLength)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, invalid(msgTooManyTags)
	}
	return out, nil
}

// ParseDueDate accepts RFC3339 timestamps or bare dates.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	return nil, invalid(msgDueDate)
}
