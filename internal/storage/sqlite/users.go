package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/models"
)

const userColumns = `id, username, email, password_hash, created_at`

// RegisterUser stores a new account and its default board in one transaction.
// passwordHash must already be hashed; nothing is written when the username
// or email is taken.
func (s *Store) RegisterUser(ctx context.Context, username, email, passwordHash string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return models.User{}, fmt.Errorf("%w: username must not be empty", ErrInvalid)
	}

	var user models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)); err == nil {
			return fmt.Errorf("username %w", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO users(username, email, password_hash) VALUES(?, ?, ?)`, username, email, passwordHash)
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "users.username") {
				return fmt.Errorf("username %w", ErrConflict)
			}
			return fmt.Errorf("email %w", ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}

		if _, err := createBoard(ctx, tx, id, "Board "+username, ""); err != nil {
			return err
		}

		user, err = getUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	return getUser(ctx, s.db, id)
}

// GetUserByUsername is used by login to look up the stored hash.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username)))
}

// DeleteUser removes a user. Owned boards and memberships go with it; tasks
// assigned to the user are kept and lose their assignee.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %w", ErrNotFound)
	}
	return nil
}

func getUser(ctx context.Context, q querier, id int64) (models.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %w", ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
