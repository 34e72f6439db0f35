package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/auth"
	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authResponse is the user record plus a fresh access token.
type authResponse struct {
	models.User
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// handleRegister creates an account together with its default board.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	user, err := s.store.RegisterUser(c.Request.Context(), req.Username, req.Email, hash)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	s.respondWithToken(c, user)
}

// handleLogin checks credentials and returns the user record.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.GetUserByUsername(c.Request.Context(), req.Username)
	if errors.Is(err, sqlite.ErrNotFound) {
		s.respondError(c, http.StatusUnauthorized, auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.respondError(c, http.StatusUnauthorized, err)
		return
	}
	s.respondWithToken(c, user)
}

func (s *Server) respondWithToken(c *gin.Context, user models.User) {
	resp := authResponse{User: user}
	if s.tokens != nil {
		token, err := s.tokens.Issue(user.ID)
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, err)
			return
		}
		resp.AccessToken = token
		resp.TokenType = "bearer"
		resp.ExpiresIn = int64(s.tokens.TTL().Seconds())
	}
	respondSuccess(c, http.StatusOK, resp)
}
