package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const (
	defaultNotePage  = 1
	defaultNoteLimit = 10
	maxNoteLimit     = 1000
)

// NoteService - note CRUD scoped to the signed-in user
type NoteService struct {
	db noteRepo
}

func NewNoteService(db noteRepo) *NoteService {
	return &NoteService{db: db}
}

func (s *NoteService) ListNotes(ctx context.Context, userID string, q model.NoteListQuery) (*model.NoteListResponse, error) {
	page := q.Page
	if page < 1 {
		page = defaultNotePage
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultNoteLimit
	}
	if limit > maxNoteLimit {
		limit = maxNoteLimit
	}

	notes, total, err := s.db.ListNotes(ctx, model.NoteFilter{
		UserID:    userID,
		Search:    strings.TrimSpace(q.Search),
		Category:  q.Category,
		Priority:  q.Priority,
		Completed: q.Completed,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	return &model.NoteListResponse{
		Notes: notes,
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

func (s *NoteService) GetNote(ctx context.Context, userID, noteID string) (*model.Note, error) {
	note, err := s.db.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, mapNoteError("get note", err)
	}
	return note, nil
}

func (s *NoteService) CreateNote(ctx context.Context, userID string, req model.CreateNoteRequest) (*model.Note, error) {
	note := model.Note{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Content:     strings.TrimSpace(req.Content),
		Category:    req.Category,
		Priority:    req.Priority,
		Tags:        cleanTags(req.Tags),
		IsCompleted: req.IsCompleted,
	}
	if note.Category == "" {
		note.Category = model.DefaultNoteCategory
	}
	if note.Priority == "" {
		note.Priority = model.DefaultNotePriority
	}
	if note.Title == "" || note.Content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}

	created, err := s.db.CreateNote(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return created, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, userID, noteID string, req model.UpdateNoteRequest) (*model.Note, error) {
	note, err := s.db.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, mapNoteError("get note", err)
	}

	if req.Title != nil {
		note.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		note.Content = strings.TrimSpace(*req.Content)
	}
	if req.Category != nil {
		note.Category = *req.Category
	}
	if req.Priority != nil {
		note.Priority = *req.Priority
	}
	if req.Tags != nil {
		note.Tags = cleanTags(req.Tags)
	}
	if req.IsCompleted != nil {
		note.IsCompleted = *req.IsCompleted
	}
	if note.Title == "" || note.Content == "" {
		return nil, fmt.Errorf("%w: title and content cannot be empty", ErrInvalidInput)
	}

	updated, err := s.db.UpdateNote(ctx, *note)
	if err != nil {
		return nil, mapNoteError("update note", err)
	}
	return updated, nil
}

func (s *NoteService) DeleteNote(ctx context.Context, userID, noteID string) error {
	if err := s.db.DeleteNote(ctx, userID, noteID); err != nil {
		return mapNoteError("delete note", err)
	}
	return nil
}

func mapNoteError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
