package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name  string
		page  Page
		total int
		want  Pagination
	}{
		{
			name:  "empty",
			page:  Page{Number: 1, Limit: 50},
			total: 0,
			want:  Pagination{CurrentPage: 1, TotalPages: 0, Total: 0, Limit: 50},
		},
		{
			name:  "partial last page",
			page:  Page{Number: 2, Limit: 10},
			total: 21,
			want:  Pagination{CurrentPage: 2, TotalPages: 3, Total: 21, Limit: 10},
		},
		{
			name:  "exact pages",
			page:  Page{Number: 1, Limit: 5},
			total: 10,
			want:  Pagination{CurrentPage: 1, TotalPages: 2, Total: 10, Limit: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPagination(tt.page, tt.total))
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Limit: 50}.Offset())
	assert.Equal(t, 100, Page{Number: 3, Limit: 50}.Offset())
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusCancelled.Reversed())
	assert.True(t, OrderStatusRefunded.Reversed())
	assert.False(t, OrderStatusPaid.Reversed())
	assert.False(t, OrderStatus("DONE").Valid())
	assert.True(t, OrganizationSuspended.Valid())
	assert.False(t, Role("root").Valid())
}
