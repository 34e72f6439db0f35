package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/models"
)

const boardColumns = `b.id, b.title, b.description, b.owner_id, b.created_at`

// CreateBoard persists a new board owned by ownerID and seeds the default columns.
func (s *Store) CreateBoard(ctx context.Context, ownerID int64, title, description string) (models.Board, error) {
	if strings.TrimSpace(title) == "" {
		return models.Board{}, fmt.Errorf("%w: board title must not be empty", ErrInvalid)
	}

	var board models.Board
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, ownerID); err != nil {
			return err
		}
		var err error
		board, err = createBoard(ctx, tx, ownerID, title, description)
		return err
	})
	if err != nil {
		return models.Board{}, err
	}
	return board, nil
}

func createBoard(ctx context.Context, tx *sql.Tx, ownerID int64, title, description string) (models.Board, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO boards(title, description, owner_id) VALUES(?, ?, ?)`,
		strings.TrimSpace(title), strings.TrimSpace(description), ownerID)
	if err != nil {
		return models.Board{}, fmt.Errorf("insert board: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Board{}, fmt.Errorf("board id: %w", err)
	}

	for i, colTitle := range models.DefaultColumnTitles {
		if _, err := createColumn(ctx, tx, id, colTitle, int64(i)); err != nil {
			return models.Board{}, err
		}
	}

	board, err := getBoard(ctx, tx, id)
	if err != nil {
		return models.Board{}, err
	}
	if err := loadColumns(ctx, tx, &board); err != nil {
		return models.Board{}, err
	}
	return board, nil
}

// GetBoard fetches a single board without its columns.
func (s *Store) GetBoard(ctx context.Context, id int64) (models.Board, error) {
	return getBoard(ctx, s.db, id)
}

// ListBoards returns the boards userID owns or is a member of, with columns
// and tasks loaded. Unknown users simply have no boards.
func (s *Store) ListBoards(ctx context.Context, userID int64) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT `+boardColumns+`
        FROM boards b
        LEFT JOIN board_members m ON m.board_id = b.id
        WHERE b.owner_id = ? OR m.user_id = ?
        ORDER BY b.id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := []models.Board{}
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The single pooled connection must be released before loading children.
	rows.Close()

	for i := range boards {
		if err := loadColumns(ctx, s.db, &boards[i]); err != nil {
			return nil, err
		}
	}
	return boards, nil
}

// InviteMember grants the user registered under email access to a board.
// Inviting the owner or an existing member changes nothing.
func (s *Store) InviteMember(ctx context.Context, boardID int64, email string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		board, err := getBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}

		var userID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, strings.TrimSpace(email)).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if userID == board.OwnerID {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO board_members(user_id, board_id) VALUES(?, ?)`, userID, boardID); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		return nil
	})
}

// ListMembers returns the users sharing a board, excluding its owner.
func (s *Store) ListMembers(ctx context.Context, boardID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.username, u.email, u.password_hash, u.created_at
        FROM users u JOIN board_members m ON m.user_id = u.id
        WHERE m.board_id = ? ORDER BY u.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

// DeleteBoard removes a board along with its columns, tasks and memberships.
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("board %w", ErrNotFound)
	}
	return nil
}

func getBoard(ctx context.Context, q querier, id int64) (models.Board, error) {
	var b models.Board
	err := q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards b WHERE b.id = ?`, id).
		Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, fmt.Errorf("board %w", ErrNotFound)
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

func loadColumns(ctx context.Context, q querier, board *models.Board) error {
	columns, err := listColumns(ctx, q, board.ID)
	if err != nil {
		return err
	}
	for i := range columns {
		tasks, err := listTasks(ctx, q, columns[i].ID)
		if err != nil {
			return err
		}
		columns[i].Tasks = tasks
	}
	board.Columns = columns
	return nil
}
