package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/models"
)

const taskColumns = `id, column_id, title, description, priority, assignee_id, created_at, updated_at`

// CreateTask inserts a new task into an existing column. An unknown priority
// falls back to MEDIUM.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("%w: task title must not be empty", ErrInvalid)
	}
	priority, ok := models.ParsePriority(string(t.Priority))
	if !ok {
		priority = models.DefaultPriority
	}

	var task models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getColumn(ctx, tx, t.ColumnID); err != nil {
			return err
		}
		if t.AssigneeID != nil {
			if _, err := getUser(ctx, tx, *t.AssigneeID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO tasks(column_id, title, description, priority, assignee_id) VALUES(?, ?, ?, ?, ?)`,
			t.ColumnID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), string(priority), nullableID(t.AssigneeID))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		task, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

// UpdateTask overwrites the fields present in changes. An empty title is
// ignored, and so is a priority that is not one of the known values.
func (s *Store) UpdateTask(ctx context.Context, id int64, changes models.TaskChanges) (models.Task, error) {
	var task models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		if changes.Title != nil && strings.TrimSpace(*changes.Title) != "" {
			current.Title = strings.TrimSpace(*changes.Title)
		}
		if changes.Description != nil {
			current.Description = strings.TrimSpace(*changes.Description)
		}
		if changes.Priority != nil {
			if p, ok := models.ParsePriority(*changes.Priority); ok {
				current.Priority = p
			}
		}
		if changes.AssigneeID != nil {
			if _, err := getUser(ctx, tx, *changes.AssigneeID); err != nil {
				return err
			}
			current.AssigneeID = changes.AssigneeID
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, priority = ?, assignee_id = ? WHERE id = ?`,
			current.Title, current.Description, string(current.Priority), nullableID(current.AssigneeID), id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		task, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// MoveTask changes only the column a task belongs to. The destination may be
// on any board but has to exist.
func (s *Store) MoveTask(ctx context.Context, id, columnID int64) (models.Task, error) {
	var task models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTask(ctx, tx, id); err != nil {
			return err
		}
		if _, err := getColumn(ctx, tx, columnID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET column_id = ? WHERE id = ?`, columnID, id); err != nil {
			return fmt.Errorf("move task: %w", err)
		}
		var err error
		task, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// DeleteTask removes a task by id and reports whether it existed.
func (s *Store) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func getTask(ctx context.Context, q querier, id int64) (models.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %w", ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func listTasks(ctx context.Context, q querier, columnID int64) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE column_id = ? ORDER BY id`, columnID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t        models.Task
		priority string
		assignee sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description, &priority, &assignee, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.Priority = models.Priority(priority)
	if assignee.Valid {
		id := assignee.Int64
		t.AssigneeID = &id
	}
	return t, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
