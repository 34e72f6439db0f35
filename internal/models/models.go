package models

import (
	"strings"
	"time"
)

// Priority is the urgency of a task card.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// DefaultPriority is stored when a task is created without a recognised priority.
const DefaultPriority = PriorityMedium

// ParsePriority matches raw against the known priorities ignoring case.
func ParsePriority(raw string) (Priority, bool) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// DefaultColumnTitles seeds every new board, in display order.
var DefaultColumnTitles = []string{"Planned", "In Progress", "Done"}

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Board groups columns and is owned by exactly one user.
type Board struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	Columns     []Column  `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
}

// Column is a lane on a board. Order is a display hint only.
type Column struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"board_id"`
	Title     string    `json:"title"`
	Order     int64     `json:"order"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
}

// Task represents a single card in a column.
type Task struct {
	ID          int64     `json:"id"`
	ColumnID    int64     `json:"column_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	AssigneeID  *int64    `json:"assignee_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskChanges carries a partial task update; nil fields are left untouched.
type TaskChanges struct {
	Title       *string
	Description *string
	Priority    *string
	AssigneeID  *int64
}
