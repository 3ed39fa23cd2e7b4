package paging

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a normalized 1-indexed page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], using
// DefaultLimit when limit is not positive.
func Normalize(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }
