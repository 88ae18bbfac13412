package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const noteColumns = `id::text, user_id::text, title, content, category, priority, tags, is_completed, created_at, updated_at`

func (db *Postgres) ListNotes(ctx context.Context, filter model.NoteFilter) ([]model.Note, int64, error) {
	where, args := noteFilterClause(filter)

	var total int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM notes
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, noteColumns, where, len(args)+1, len(args)+2)
	rows, err := db.Pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (db *Postgres) GetNote(ctx context.Context, userID, noteID string) (*model.Note, error) {
	if _, err := uuid.Parse(noteID); err != nil {
		return nil, ErrNotFound
	}
	note, err := scanNote(db.Pool.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND user_id = $2`, noteID, userID))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return note, nil
}

func (db *Postgres) CreateNote(ctx context.Context, note model.Note) (*model.Note, error) {
	query := `
		INSERT INTO notes (id, user_id, title, content, category, priority, tags, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + noteColumns
	return scanNote(db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		note.UserID,
		note.Title,
		note.Content,
		note.Category,
		note.Priority,
		nonNilTags(note.Tags),
		note.IsCompleted,
	))
}

// UpdateNote overwrites the mutable fields of a note owned by note.UserID.
func (db *Postgres) UpdateNote(ctx context.Context, note model.Note) (*model.Note, error) {
	if _, err := uuid.Parse(note.ID); err != nil {
		return nil, ErrNotFound
	}
	query := `
		UPDATE notes
		SET title = $3, content = $4, category = $5, priority = $6, tags = $7, is_completed = $8, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + noteColumns
	updated, err := scanNote(db.Pool.QueryRow(ctx, query,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
		note.Category,
		note.Priority,
		nonNilTags(note.Tags),
		note.IsCompleted,
	))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (db *Postgres) DeleteNote(ctx context.Context, userID, noteID string) error {
	if _, err := uuid.Parse(noteID); err != nil {
		return ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func noteFilterClause(filter model.NoteFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{filter.UserID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.Completed != nil {
		add("is_completed = $%d", *filter.Completed)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add(`(title ILIKE $%[1]d OR content ILIKE $%[1]d OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $%[1]d))`,
			"%"+escapeLike(search)+"%")
	}

	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanNote(row rowScanner) (*model.Note, error) {
	var note model.Note
	err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Content,
		&note.Category,
		&note.Priority,
		&note.Tags,
		&note.IsCompleted,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &note, nil
}
