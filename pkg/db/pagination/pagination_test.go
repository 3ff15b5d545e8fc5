package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type row struct{ ID string }

func TestCursorRoundTrip(t *testing.T) {
	encoded, err := EncodeCursor(Cursor{ID: "42"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "42", cursor.ID)
}

func TestTrim(t *testing.T) {
	rows := []*row{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	page, info := Trim(rows, 2, func(r *row) string { return r.ID })
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "2", info.NextCursor)

	page, info = Trim(rows, 5, func(r *row) string { return r.ID })
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}

func TestSize(t *testing.T) {
	require.Equal(t, 10, Pagination{}.Size())
	require.Equal(t, 250, Pagination{Limit: 1000}.Size())
	require.Equal(t, 7, Pagination{Limit: 7}.Size())
}
