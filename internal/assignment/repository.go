package assignment

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

const assignmentColumns = `id, user_id, name, description, assigned_date, due_date, status, created_at, updated_at`

// enrichment adds the roster size and the count of distinct voters with
// at least one contact log on this assignment.
const enrichedColumns = assignmentColumns + `,
    (SELECT count(*) FROM assignment_voters av WHERE av.assignment_id = assignments.id) AS voter_count,
    (SELECT count(DISTINCT cl.voter_id) FROM contact_logs cl WHERE cl.assignment_id = assignments.id) AS contacted_count`

// Repository owns all SQL touching assignments and their rosters.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows ListAssignments.
type ListFilter struct {
	UserID *uuid.UUID
	Status *repo.AssignmentStatus
	Limit  int
	Offset int
}

// Enriched is an assignment plus its progress counters.
type Enriched struct {
	repo.Assignment
	VoterCount     int `json:"voter_count"`
	ContactedCount int `json:"completed_count"`
}

// RosterEntry is one voter on a walk list, with the latest contact made
// under this assignment (nil when never contacted here).
type RosterEntry struct {
	repo.Voter
	SequenceOrder *int         `json:"sequence_order,omitempty"`
	LastContact   *ContactInfo `json:"last_contact,omitempty"`
}

// ContactInfo is the summary of one contact log on a roster entry.
type ContactInfo struct {
	ID           uuid.UUID        `json:"id"`
	ContactType  repo.ContactType `json:"contact_type"`
	Result       *string          `json:"result,omitempty"`
	SupportLevel *int             `json:"support_level,omitempty"`
	ContactedAt  time.Time        `json:"contacted_at"`
}

// CreateAssignment inserts the assignment and its roster in one
// transaction; the roster gets 1-based sequence numbers in input order.
func (r *Repository) CreateAssignment(ctx context.Context, a repo.Assignment, voterIDs []uuid.UUID) (repo.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var created repo.Assignment
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO assignments (user_id, name, description, assigned_date, due_date, status)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING `+assignmentColumns,
			a.UserID, a.Name, a.Description, a.AssignedDate, a.DueDate, a.Status)
		if err := scanAssignment(row, &created); err != nil {
			return err
		}

		for i, voterID := range voterIDs {
			_, err := tx.Exec(ctx, `
                INSERT INTO assignment_voters (assignment_id, voter_id, sequence_order)
                VALUES ($1, $2, $3)`,
				created.ID, voterID, i+1)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return repo.Assignment{}, mapConstraintErr(err, "create assignment")
	}
	return created, nil
}

func (r *Repository) GetAssignment(ctx context.Context, id uuid.UUID) (repo.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a repo.Assignment
	row := r.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	if err := scanAssignment(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Assignment{}, repo.ErrNotFound
		}
		return repo.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (r *Repository) GetEnriched(ctx context.Context, id uuid.UUID) (Enriched, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var e Enriched
	row := r.db.QueryRow(ctx, `SELECT `+enrichedColumns+` FROM assignments WHERE id = $1`, id)
	if err := scanEnriched(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enriched{}, repo.ErrNotFound
		}
		return Enriched{}, fmt.Errorf("get assignment: %w", err)
	}
	return e, nil
}

func (r *Repository) ListAssignments(ctx context.Context, filter ListFilter) ([]Enriched, error) {
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
		where = append(where, "user_id = "+arg(*filter.UserID))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(*filter.Status))
	}

	query := `SELECT ` + enrichedColumns + ` FROM assignments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY assigned_date DESC, created_at DESC"
	query += " LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []Enriched{}
	for rows.Next() {
		var e Enriched
		if err := scanEnriched(rows, &e); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, e)
	}
	return assignments, rows.Err()
}

// UpdateAssignment persists every mutable column of a. Callers load the
// row first and mutate it in memory.
func (r *Repository) UpdateAssignment(ctx context.Context, a repo.Assignment) (repo.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var updated repo.Assignment
	row := r.db.QueryRow(ctx, `
        UPDATE assignments
        SET user_id = $2, name = $3, description = $4, assigned_date = $5,
            due_date = $6, status = $7, updated_at = now()
        WHERE id = $1
        RETURNING `+assignmentColumns,
		a.ID, a.UserID, a.Name, a.Description, a.AssignedDate, a.DueDate, a.Status)
	if err := scanAssignment(row, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Assignment{}, repo.ErrNotFound
		}
		return repo.Assignment{}, mapConstraintErr(err, "update assignment")
	}
	return updated, nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// rosterOrder is the walk-list ordering: explicit sequence first, then
// voters without a sequence alphabetically.
const rosterOrder = ` ORDER BY av.sequence_order ASC NULLS LAST, v.last_name, v.first_name`

// Roster returns the ordered walk list. withLastContact additionally
// joins each voter's most recent contact made under this assignment.
func (r *Repository) Roster(ctx context.Context, assignmentID uuid.UUID, withLastContact bool) ([]RosterEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `
        SELECT v.id, v.voter_id, v.first_name, v.last_name, v.address, v.city, v.state,
               v.zip, v.party_affiliation, v.support_level, v.phone, v.email,
               ST_AsText(v.location), v.created_at, v.updated_at, av.sequence_order`
	if withLastContact {
		query += `,
               lc.id, lc.contact_type, lc.result, lc.support_level, lc.contacted_at`
	}
	query += `
        FROM assignment_voters av
        JOIN voters v ON v.id = av.voter_id`
	if withLastContact {
		query += `
        LEFT JOIN LATERAL (
            SELECT cl.id, cl.contact_type, cl.result, cl.support_level, cl.contacted_at
            FROM contact_logs cl
            WHERE cl.assignment_id = av.assignment_id AND cl.voter_id = av.voter_id
            ORDER BY cl.contacted_at DESC
            LIMIT 1
        ) lc ON true`
	}
	query += `
        WHERE av.assignment_id = $1` + rosterOrder

	rows, err := r.db.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	defer rows.Close()

	entries := []RosterEntry{}
	for rows.Next() {
		var (
			e   RosterEntry
			wkt *string
		)
		dest := []any{
			&e.ID, &e.VoterID, &e.FirstName, &e.LastName, &e.Address, &e.City,
			&e.State, &e.Zip, &e.PartyAffiliation, &e.SupportLevel, &e.Phone,
			&e.Email, &wkt, &e.CreatedAt, &e.UpdatedAt, &e.SequenceOrder,
		}
		var (
			lcID           *uuid.UUID
			lcType         *repo.ContactType
			lcResult       *string
			lcSupportLevel *int
			lcContactedAt  *time.Time
		)
		if withLastContact {
			dest = append(dest, &lcID, &lcType, &lcResult, &lcSupportLevel, &lcContactedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		if e.Location, err = geo.FromWKTColumn(wkt); err != nil {
			return nil, err
		}
		if lcID != nil {
			e.LastContact = &ContactInfo{
				ID:           *lcID,
				ContactType:  *lcType,
				Result:       lcResult,
				SupportLevel: lcSupportLevel,
				ContactedAt:  *lcContactedAt,
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Progress returns the roster size and the distinct-contacted count.
func (r *Repository) Progress(ctx context.Context, assignmentID uuid.UUID) (voterCount, contactedCount int, err error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err = r.db.QueryRow(ctx, `
        SELECT (SELECT count(*) FROM assignment_voters av WHERE av.assignment_id = $1),
               (SELECT count(DISTINCT cl.voter_id) FROM contact_logs cl WHERE cl.assignment_id = $1)`,
		assignmentID).Scan(&voterCount, &contactedCount)
	if err != nil {
		return 0, 0, fmt.Errorf("assignment progress: %w", err)
	}
	return voterCount, contactedCount, nil
}

// AddVoters appends voters to the roster, continuing the sequence from
// the current maximum.
func (r *Repository) AddVoters(ctx context.Context, assignmentID uuid.UUID, voterIDs []uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var next int
		err := tx.QueryRow(ctx, `
            SELECT COALESCE(MAX(sequence_order), 0) + 1
            FROM assignment_voters WHERE assignment_id = $1`,
			assignmentID).Scan(&next)
		if err != nil {
			return err
		}

		for _, voterID := range voterIDs {
			_, err := tx.Exec(ctx, `
                INSERT INTO assignment_voters (assignment_id, voter_id, sequence_order)
                VALUES ($1, $2, $3)`,
				assignmentID, voterID, next)
			if err != nil {
				return err
			}
			next++
		}
		return nil
	})
	if err != nil {
		return mapConstraintErr(err, "add voters")
	}
	return nil
}

func (r *Repository) RemoveVoter(ctx context.Context, assignmentID, voterID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
        DELETE FROM assignment_voters WHERE assignment_id = $1 AND voter_id = $2`,
		assignmentID, voterID)
	if err != nil {
		return fmt.Errorf("remove voter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ReorderVoters rewrites sequence_order from the given voter-id order.
// Every id must already be on the roster.
func (r *Repository) ReorderVoters(ctx context.Context, assignmentID uuid.UUID, orderedVoterIDs []uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		for i, voterID := range orderedVoterIDs {
			tag, err := tx.Exec(ctx, `
                UPDATE assignment_voters SET sequence_order = $3
                WHERE assignment_id = $1 AND voter_id = $2`,
				assignmentID, voterID, i+1)
			if err != nil {
				return fmt.Errorf("reorder voters: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("voter %s not on roster: %w", voterID, repo.ErrNotFound)
			}
		}
		return nil
	})
}

func scanAssignment(row pgx.Row, a *repo.Assignment) error {
	return row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.AssignedDate,
		&a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

func scanEnriched(row pgx.Row, e *Enriched) error {
	return row.Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.AssignedDate,
		&e.DueDate, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		&e.VoterCount, &e.ContactedCount)
}

func mapConstraintErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, repo.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, repo.ErrInvalidReference)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
