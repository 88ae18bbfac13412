package model

import "time"

const (
	DefaultNoteCategory = "personal"
	DefaultNotePriority = "medium"
)

type Note struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"user"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Tags        []string  `json:"tags"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateNoteRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=100"`
	Content     string   `json:"content" binding:"required,min=1,max=5000"`
	Category    string   `json:"category" binding:"omitempty,oneof=personal work ideas todo other"`
	Priority    string   `json:"priority" binding:"omitempty,oneof=low medium high"`
	Tags        []string `json:"tags" binding:"omitempty,dive,max=20"`
	IsCompleted bool     `json:"isCompleted"`
}

// UpdateNoteRequest carries a partial update; nil fields are left untouched.
type UpdateNoteRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=1,max=100"`
	Content     *string  `json:"content" binding:"omitempty,min=1,max=5000"`
	Category    *string  `json:"category" binding:"omitempty,oneof=personal work ideas todo other"`
	Priority    *string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	Tags        []string `json:"tags" binding:"omitempty,dive,max=20"`
	IsCompleted *bool    `json:"isCompleted"`
}

type NoteListQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	Category  string `form:"category" binding:"omitempty,oneof=personal work ideas todo other"`
	Priority  string `form:"priority" binding:"omitempty,oneof=low medium high"`
	Completed *bool  `form:"completed"`
}

type NoteFilter struct {
	UserID    string
	Search    string
	Category  string
	Priority  string
	Completed *bool
	Offset    int
	Limit     int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type NoteListResponse struct {
	Notes      []Note     `json:"notes"`
	Pagination Pagination `json:"pagination"`
}

type NoteResponse struct {
	Note Note `json:"note"`
}

type NoteMutationResponse struct {
	Message string `json:"message"`
	Note    *Note  `json:"note,omitempty"`
}
