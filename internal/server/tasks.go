package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/models"
)

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	ColumnID    int64   `json:"column_id" binding:"required"`
	AssigneeID  *int64  `json:"assignee_id"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	AssigneeID  *int64  `json:"assignee_id"`
}

// handleCreateTask inserts a new task into a column.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), models.Task{
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: getString(req.Description),
		Priority:    models.Priority(getString(req.Priority)),
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask updates task fields such as title, description or priority.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, models.TaskChanges{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	deleted, err := s.store.DeleteTask(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if !deleted {
		s.respondError(c, http.StatusNotFound, errors.New("task not found"))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleMoveTask puts a task into the column given by ?column_id=.
func (s *Server) handleMoveTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	columnID, ok := parseQueryID(c, "column_id")
	if !ok {
		return
	}

	task, err := s.store.MoveTask(c.Request.Context(), id, columnID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
