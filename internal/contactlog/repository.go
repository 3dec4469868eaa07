package contactlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votefield/canvass/internal/db"
	"github.com/votefield/canvass/internal/geo"
	"github.com/votefield/canvass/internal/repo"
)

const dbTimeout = 3 * time.Second

const logColumns = `id, assignment_id, voter_id, user_id, contact_type, result,
    support_level, ST_AsText(location), contacted_at, created_at`

// Repository owns all SQL touching the contact_logs table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows ListContactLogs.
type ListFilter struct {
	UserID       *uuid.UUID
	AssignmentID *uuid.UUID
	VoterID      *uuid.UUID
	ContactType  *repo.ContactType
	SupportLevel *int
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}

// WithVoter is a contact log with the voter's name joined in.
type WithVoter struct {
	repo.ContactLog
	VoterName string `json:"voter_name"`
}

// CreateContactLog inserts the log and, when it carries a support level,
// writes that level back to the voter in the same transaction.
func (r *Repository) CreateContactLog(ctx context.Context, cl repo.ContactLog) (repo.ContactLog, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var created repo.ContactLog
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO contact_logs (assignment_id, voter_id, user_id, contact_type,
                                      result, support_level, location, contacted_at)
            VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKT($7), $8)
            RETURNING `+logColumns,
			cl.AssignmentID, cl.VoterID, cl.UserID, cl.ContactType,
			cl.Result, cl.SupportLevel, ewktOrNil(cl.Location), cl.ContactedAt)
		if err := scanLog(row, &created); err != nil {
			return err
		}
		return propagateSupportLevel(ctx, tx, created.VoterID, created.SupportLevel)
	})
	if err != nil {
		return repo.ContactLog{}, mapConstraintErr(err, "create contact log")
	}
	return created, nil
}

func (r *Repository) GetContactLog(ctx context.Context, id uuid.UUID) (repo.ContactLog, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var cl repo.ContactLog
	row := r.db.QueryRow(ctx, `SELECT `+logColumns+` FROM contact_logs WHERE id = $1`, id)
	if err := scanLog(row, &cl); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ContactLog{}, repo.ErrNotFound
		}
		return repo.ContactLog{}, fmt.Errorf("get contact log: %w", err)
	}
	return cl, nil
}

// GetAssignmentOwner loads just enough of an assignment for the
// existence and ownership checks that precede log writes.
func (r *Repository) GetAssignmentOwner(ctx context.Context, id uuid.UUID) (repo.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a repo.Assignment
	err := r.db.QueryRow(ctx, `SELECT id, user_id FROM assignments WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Assignment{}, repo.ErrNotFound
		}
		return repo.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (r *Repository) ListContactLogs(ctx context.Context, filter ListFilter) ([]WithVoter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != nil {
		where = append(where, "cl.user_id = "+arg(*filter.UserID))
	}
	if filter.AssignmentID != nil {
		where = append(where, "cl.assignment_id = "+arg(*filter.AssignmentID))
	}
	if filter.VoterID != nil {
		where = append(where, "cl.voter_id = "+arg(*filter.VoterID))
	}
	if filter.ContactType != nil {
		where = append(where, "cl.contact_type = "+arg(*filter.ContactType))
	}
	if filter.SupportLevel != nil {
		where = append(where, "cl.support_level = "+arg(*filter.SupportLevel))
	}
	if filter.StartDate != nil {
		where = append(where, "cl.contacted_at >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "cl.contacted_at <= "+arg(*filter.EndDate))
	}

	query := `
        SELECT cl.id, cl.assignment_id, cl.voter_id, cl.user_id, cl.contact_type,
               cl.result, cl.support_level, ST_AsText(cl.location), cl.contacted_at,
               cl.created_at, v.first_name || ' ' || v.last_name
        FROM contact_logs cl
        JOIN voters v ON v.id = cl.voter_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY cl.contacted_at DESC"
	query += " LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contact logs: %w", err)
	}
	defer rows.Close()

	logs := []WithVoter{}
	for rows.Next() {
		var (
			l   WithVoter
			wkt *string
		)
		err := rows.Scan(&l.ID, &l.AssignmentID, &l.VoterID, &l.UserID, &l.ContactType,
			&l.Result, &l.SupportLevel, &wkt, &l.ContactedAt, &l.CreatedAt, &l.VoterName)
		if err != nil {
			return nil, fmt.Errorf("scan contact log: %w", err)
		}
		if l.Location, err = geo.FromWKTColumn(wkt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UpdateContactLog persists every mutable column of cl. The voter's
// support level is written back only when propagateLevel is set, i.e.
// when the caller's input actually changed it.
func (r *Repository) UpdateContactLog(ctx context.Context, cl repo.ContactLog, propagateLevel bool) (repo.ContactLog, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var updated repo.ContactLog
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE contact_logs
            SET contact_type = $2, result = $3, support_level = $4,
                location = ST_GeomFromEWKT($5), contacted_at = $6
            WHERE id = $1
            RETURNING `+logColumns,
			cl.ID, cl.ContactType, cl.Result, cl.SupportLevel,
			ewktOrNil(cl.Location), cl.ContactedAt)
		if err := scanLog(row, &updated); err != nil {
			return err
		}
		if !propagateLevel {
			return nil
		}
		return propagateSupportLevel(ctx, tx, updated.VoterID, updated.SupportLevel)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ContactLog{}, repo.ErrNotFound
		}
		return repo.ContactLog{}, mapConstraintErr(err, "update contact log")
	}
	return updated, nil
}

func (r *Repository) DeleteContactLog(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM contact_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func propagateSupportLevel(ctx context.Context, tx pgx.Tx, voterID uuid.UUID, level *int) error {
	if level == nil {
		return nil
	}
	_, err := tx.Exec(ctx, `
        UPDATE voters SET support_level = $2, updated_at = now() WHERE id = $1`,
		voterID, *level)
	return err
}

func scanLog(row pgx.Row, cl *repo.ContactLog) error {
	var wkt *string
	err := row.Scan(&cl.ID, &cl.AssignmentID, &cl.VoterID, &cl.UserID, &cl.ContactType,
		&cl.Result, &cl.SupportLevel, &wkt, &cl.ContactedAt, &cl.CreatedAt)
	if err != nil {
		return err
	}
	cl.Location, err = geo.FromWKTColumn(wkt)
	return err
}

func ewktOrNil(p *geo.Point) *string {
	if p == nil {
		return nil
	}
	s := p.EWKT()
	return &s
}

func mapConstraintErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%s: %w", op, repo.ErrInvalidReference)
	}
	return fmt.Errorf("%s: %w", op, err)
}
