package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
	"github.com/yavishsahrawat40/My-Notes/internal/service"
)

// noteService - note CRUD for the signed-in user
type noteService interface {
	ListNotes(ctx context.Context, userID string, q model.NoteListQuery) (*model.NoteListResponse, error)
	GetNote(ctx context.Context, userID, noteID string) (*model.Note, error)
	CreateNote(ctx context.Context, userID string, req model.CreateNoteRequest) (*model.Note, error)
	UpdateNote(ctx context.Context, userID, noteID string, req model.UpdateNoteRequest) (*model.Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error
}

type NoteHandler struct {
	svc noteService
}

func NewNoteHandler(svc noteService) *NoteHandler {
	return &NoteHandler{svc: svc}
}

// ListNotes godoc
// @Summary List notes
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (>= 1)"
// @Param limit query int false "Page size (1-1000)"
// @Param search query string false "Matches title, content or tags"
// @Param category query string false "personal, work, ideas, todo or other"
// @Param priority query string false "low, medium or high"
// @Param completed query bool false "Completion state"
// @Success 200 {object} model.NoteListResponse
// @Failure 400,401,500 {object} model.ErrorResponse
// @Router /api/notes [get]
func (h *NoteHandler) ListNotes(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	var q model.NoteListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := h.svc.ListNotes(c.Request.Context(), user.ID, q)
	if err != nil {
		writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetNote godoc
// @Summary Get a note
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 200 {object} model.NoteResponse
// @Failure 401,404,500 {object} model.ErrorResponse
// @Router /api/notes/{id} [get]
func (h *NoteHandler) GetNote(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	note, err := h.svc.GetNote(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NoteResponse{Note: *note})
}

// CreateNote godoc
// @Summary Create a note
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateNoteRequest true "Note"
// @Success 201 {object} model.NoteMutationResponse
// @Failure 400,401,500 {object} model.ErrorResponse
// @Router /api/notes [post]
func (h *NoteHandler) CreateNote(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	var req model.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	note, err := h.svc.CreateNote(c.Request.Context(), user.ID, req)
	if err != nil {
		writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NoteMutationResponse{Message: "Note created successfully", Note: note})
}

// UpdateNote godoc
// @Summary Update a note
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Param request body model.UpdateNoteRequest true "Fields to change"
// @Success 200 {object} model.NoteMutationResponse
// @Failure 400,401,404,500 {object} model.ErrorResponse
// @Router /api/notes/{id} [put]
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	var req model.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	note, err := h.svc.UpdateNote(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NoteMutationResponse{Message: "Note updated successfully", Note: note})
}

// DeleteNote godoc
// @Summary Delete a note
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 200 {object} model.MessageResponse
// @Failure 401,404,500 {object} model.ErrorResponse
// @Router /api/notes/{id} [delete]
func (h *NoteHandler) DeleteNote(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	if err := h.svc.DeleteNote(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		writeNoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Note deleted successfully"})
}

func writeNoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Note not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal server error"})
	}
}
