package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/models"
)

var errNotOwner = errors.New("only the board owner can manage columns")

type createColumnRequest struct {
	Title string `json:"title" binding:"required"`
	Order int64  `json:"order"`
}

type updateColumnRequest struct {
	Title string `json:"title" binding:"required"`
}

// handleCreateColumn adds a column to a board owned by the caller.
func (s *Server) handleCreateColumn(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := s.callerID(c)
	if !ok {
		return
	}

	var req createColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	board, err := s.store.GetBoard(c.Request.Context(), boardID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if board.OwnerID != userID {
		s.respondError(c, http.StatusForbidden, errNotOwner)
		return
	}

	col, err := s.store.CreateColumn(c.Request.Context(), boardID, req.Title, req.Order)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, col)
}

// handleUpdateColumn renames a column.
func (s *Server) handleUpdateColumn(c *gin.Context) {
	col, ok := s.ownedColumn(c)
	if !ok {
		return
	}

	var req updateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	updated, err := s.store.UpdateColumn(c.Request.Context(), col.ID, req.Title)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, updated)
}

// handleDeleteColumn removes a column and its tasks.
func (s *Server) handleDeleteColumn(c *gin.Context) {
	col, ok := s.ownedColumn(c)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteColumn(c.Request.Context(), col.ID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if !deleted {
		s.respondError(c, http.StatusNotFound, errors.New("column not found"))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// ownedColumn loads the column named in the path and checks that the caller
// owns its board.
func (s *Server) ownedColumn(c *gin.Context) (models.Column, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return models.Column{}, false
	}
	userID, ok := s.callerID(c)
	if !ok {
		return models.Column{}, false
	}

	col, err := s.store.GetColumn(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return models.Column{}, false
	}
	board, err := s.store.GetBoard(c.Request.Context(), col.BoardID)
	if err != nil {
		s.respondStoreError(c, err)
		return models.Column{}, false
	}
	if board.OwnerID != userID {
		s.respondError(c, http.StatusForbidden, errNotOwner)
		return models.Column{}, false
	}
	return col, true
}
