package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

func TestNoteServiceCreateDefaults(t *testing.T) {
	svc := NewNoteService(newFakeNoteRepo())

	note, err := svc.CreateNote(context.Background(), "u1", model.CreateNoteRequest{
		Title:   " Groceries ",
		Content: "milk",
		Tags:    []string{" food ", ""},
	})
	require.NoError(t, err)
	require.Equal(t, "Groceries", note.Title)
	require.Equal(t, model.DefaultNoteCategory, note.Category)
	require.Equal(t, model.DefaultNotePriority, note.Priority)
	require.Equal(t, []string{"food"}, note.Tags)

	_, err = svc.CreateNote(context.Background(), "u1", model.CreateNoteRequest{Title: " ", Content: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNoteServiceListPagination(t *testing.T) {
	svc := NewNoteService(newFakeNoteRepo())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.CreateNote(ctx, "u1", model.CreateNoteRequest{Title: "note", Content: "body", Category: "work"})
		require.NoError(t, err)
	}
	_, err := svc.CreateNote(ctx, "u2", model.CreateNoteRequest{Title: "other", Content: "body"})
	require.NoError(t, err)

	res, err := svc.ListNotes(ctx, "u1", model.NoteListQuery{})
	require.NoError(t, err)
	require.Len(t, res.Notes, 10)
	require.Equal(t, model.Pagination{Page: 1, Limit: 10, Total: 25, Pages: 3}, res.Pagination)
	require.True(t, res.Notes[0].CreatedAt.After(res.Notes[9].CreatedAt))

	res, err = svc.ListNotes(ctx, "u1", model.NoteListQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Notes, 5)

	completed := true
	res, err = svc.ListNotes(ctx, "u1", model.NoteListQuery{Completed: &completed})
	require.NoError(t, err)
	require.Empty(t, res.Notes)
	require.Zero(t, res.Pagination.Pages)
}

func TestNoteServiceOwnership(t *testing.T) {
	svc := NewNoteService(newFakeNoteRepo())
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "owner", model.CreateNoteRequest{Title: "mine", Content: "secret"})
	require.NoError(t, err)

	_, err = svc.GetNote(ctx, "intruder", note.ID)
	require.ErrorIs(t, err, ErrNotFound)

	title := "theirs"
	_, err = svc.UpdateNote(ctx, "intruder", note.ID, model.UpdateNoteRequest{Title: &title})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.DeleteNote(ctx, "intruder", note.ID), ErrNotFound)

	done := true
	updated, err := svc.UpdateNote(ctx, "owner", note.ID, model.UpdateNoteRequest{IsCompleted: &done})
	require.NoError(t, err)
	require.True(t, updated.IsCompleted)
	require.Equal(t, "mine", updated.Title)

	require.NoError(t, svc.DeleteNote(ctx, "owner", note.ID))
	_, err = svc.GetNote(ctx, "owner", note.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
