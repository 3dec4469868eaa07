package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votefield/canvass/internal/repo"
)

const dbTimeout = 3 * time.Second

const userColumns = `id, email, full_name, role, phone, password_hash, created_at, updated_at`

// Repository owns all SQL touching the users table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows ListUsers.
type ListFilter struct {
	Role   *repo.Role
	Limit  int
	Offset int
}

func (r *Repository) CreateUser(ctx context.Context, u repo.User) (repo.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
        INSERT INTO users (email, full_name, role, phone, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+userColumns,
		u.Email, u.FullName, u.Role, u.Phone, u.PasswordHash)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.User{}, fmt.Errorf("email %s: %w", u.Email, repo.ErrConflict)
		}
		return repo.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.User{}, repo.ErrNotFound
		}
		return repo.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (repo.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.User{}, repo.ErrNotFound
		}
		return repo.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]repo.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if filter.Role != nil {
		query += ` WHERE role = ` + arg(*filter.Role)
	}
	query += ` ORDER BY full_name, email`
	query += ` LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []repo.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser persists every mutable column of u. Callers load the row
// first and mutate it in memory.
func (r *Repository) UpdateUser(ctx context.Context, u repo.User) (repo.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
        UPDATE users
        SET email = $2, full_name = $3, role = $4, phone = $5,
            password_hash = $6, updated_at = now()
        WHERE id = $1
        RETURNING `+userColumns,
		u.ID, u.Email, u.FullName, u.Role, u.Phone, u.PasswordHash)

	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.User{}, repo.ErrNotFound
		}
		if isUniqueViolation(err) {
			return repo.User{}, fmt.Errorf("email %s: %w", u.Email, repo.ErrConflict)
		}
		return repo.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (repo.User, error) {
	var u repo.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Phone,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
