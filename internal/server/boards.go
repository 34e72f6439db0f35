package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type boardRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type inviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// handleListBoards returns every board the caller owns or shares, columns and tasks included.
func (s *Server) handleListBoards(c *gin.Context) {
	userID, ok := s.callerID(c)
	if !ok {
		return
	}

	boards, err := s.store.ListBoards(c.Request.Context(), userID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, boards)
}

// handleCreateBoard creates an extra board for the caller.
func (s *Server) handleCreateBoard(c *gin.Context) {
	userID, ok := s.callerID(c)
	if !ok {
		return
	}

	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	board, err := s.store.CreateBoard(c.Request.Context(), userID, req.Title, req.Description)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, board)
}

// handleInviteMember shares a board with the user registered under an email.
func (s *Server) handleInviteMember(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.store.InviteMember(c.Request.Context(), boardID, req.Email); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "invited"})
}
