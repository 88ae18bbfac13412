package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

func TestNoteFilterClause(t *testing.T) {
	completed := true
	where, args := noteFilterClause(model.NoteFilter{
		UserID:    "u1",
		Category:  "work",
		Priority:  "high",
		Completed: &completed,
		Search:    " 50%_off ",
	})

	require.Equal(t,
		`user_id = $1 AND category = $2 AND priority = $3 AND is_completed = $4 AND `+
			`(title ILIKE $5 OR content ILIKE $5 OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $5))`,
		where)
	require.Equal(t, []any{"u1", "work", "high", true, `%50\%\_off%`}, args)
}

func TestNoteFilterClauseOwnerOnly(t *testing.T) {
	where, args := noteFilterClause(model.NoteFilter{UserID: "u1"})
	require.Equal(t, "user_id = $1", where)
	require.Equal(t, []any{"u1"}, args)
}
