package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		limit      int
		want       Page
		wantOffset int
	}{
		{name: "defaults", page: 0, limit: 0, want: Page{Page: 1, Limit: 20}, wantOffset: 0},
		{name: "third page", page: 3, limit: 20, want: Page{Page: 3, Limit: 20}, wantOffset: 40},
		{name: "limit capped", page: 1, limit: 500, want: Page{Page: 1, Limit: 100}, wantOffset: 0},
		{name: "negative page", page: -4, limit: 10, want: Page{Page: 1, Limit: 10}, wantOffset: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.page, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOffset, got.Offset())
		})
	}
}
