package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID        int64
	CreatedAt time.Time
}

func TestBuildCursorPageInfo(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []*row{{ID: 3, CreatedAt: base}, {ID: 2, CreatedAt: base}, {ID: 1, CreatedAt: base}}

	page, info := BuildCursorPageInfo(rows, 2, func(r *row) string { return CursorFor(r.ID, r.CreatedAt) })
	require.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", cursor.ID)

	_, info = BuildCursorPageInfo(rows, 5, func(r *row) string { return "" })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
