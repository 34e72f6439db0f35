package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/models"
)

const columnColumns = `id, board_id, title, position, created_at`

// CreateColumn appends a column to a board. order is stored as given.
func (s *Store) CreateColumn(ctx context.Context, boardID int64, title string, order int64) (models.Column, error) {
	if strings.TrimSpace(title) == "" {
		return models.Column{}, fmt.Errorf("%w: column title must not be empty", ErrInvalid)
	}

	var col models.Column
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, boardID); err != nil {
			return err
		}
		var err error
		col, err = createColumn(ctx, tx, boardID, title, order)
		return err
	})
	if err != nil {
		return models.Column{}, err
	}
	return col, nil
}

func createColumn(ctx context.Context, q querier, boardID int64, title string, order int64) (models.Column, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO columns(board_id, title, position) VALUES(?, ?, ?)`, boardID, strings.TrimSpace(title), order)
	if err != nil {
		return models.Column{}, fmt.Errorf("insert column: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Column{}, fmt.Errorf("column id: %w", err)
	}
	return getColumn(ctx, q, id)
}

// GetColumn fetches a column with its tasks.
func (s *Store) GetColumn(ctx context.Context, id int64) (models.Column, error) {
	col, err := getColumn(ctx, s.db, id)
	if err != nil {
		return models.Column{}, err
	}
	col.Tasks, err = listTasks(ctx, s.db, id)
	if err != nil {
		return models.Column{}, err
	}
	return col, nil
}

// UpdateColumn replaces the column title.
func (s *Store) UpdateColumn(ctx context.Context, id int64, title string) (models.Column, error) {
	if strings.TrimSpace(title) == "" {
		return models.Column{}, fmt.Errorf("%w: column title must not be empty", ErrInvalid)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE columns SET title = ? WHERE id = ?`, strings.TrimSpace(title), id)
	if err != nil {
		return models.Column{}, fmt.Errorf("update column: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Column{}, err
	}
	if affected == 0 {
		return models.Column{}, fmt.Errorf("column %w", ErrNotFound)
	}
	return s.GetColumn(ctx, id)
}

// DeleteColumn removes a column and every task in it. It reports false when
// the column does not exist.
func (s *Store) DeleteColumn(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete column: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func getColumn(ctx context.Context, q querier, id int64) (models.Column, error) {
	var c models.Column
	err := q.QueryRowContext(ctx, `SELECT `+columnColumns+` FROM columns WHERE id = ?`, id).
		Scan(&c.ID, &c.BoardID, &c.Title, &c.Order, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, fmt.Errorf("column %w", ErrNotFound)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get column: %w", err)
	}
	c.Tasks = []models.Task{}
	return c, nil
}

func listColumns(ctx context.Context, q querier, boardID int64) ([]models.Column, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+columnColumns+` FROM columns WHERE board_id = ? ORDER BY position, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := []models.Column{}
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Order, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Tasks = []models.Task{}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}
