package voter

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

	"github.com/votefield/canvass/internal/geo"
	"github.com/votefield/canvass/internal/repo"
)

const dbTimeout = 3 * time.Second

const voterColumns = `id, voter_id, first_name, last_name, address, city, state, zip,
    party_affiliation, support_level, phone, email, ST_AsText(location), created_at, updated_at`

// Repository owns all SQL touching the voters table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows ListVoters. Query matches first or last name,
// case-insensitive substring.
type ListFilter struct {
	Zip          *string
	City         *string
	Party        *string
	SupportLevel *int
	Query        *string
	Limit        int
	Offset       int
}

// NearbyVoter is a voter plus its distance from the reference point.
type NearbyVoter struct {
	repo.Voter
	DistanceMeters float64 `json:"distance_meters"`
}

// ContactSummary is one row of a voter's contact history.
type ContactSummary struct {
	ID           uuid.UUID        `json:"id"`
	AssignmentID uuid.UUID        `json:"assignment_id"`
	ContactType  repo.ContactType `json:"contact_type"`
	Result       *string          `json:"result,omitempty"`
	SupportLevel *int             `json:"support_level,omitempty"`
	ContactedAt  time.Time        `json:"contacted_at"`
	UserID       uuid.UUID        `json:"user_id"`
	UserName     string           `json:"user_name"`
}

func (r *Repository) CreateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
        INSERT INTO voters (voter_id, first_name, last_name, address, city, state, zip,
                            party_affiliation, support_level, phone, email, location)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, ST_GeomFromEWKT($12))
        RETURNING `+voterColumns,
		v.VoterID, v.FirstName, v.LastName, v.Address, v.City, v.State, v.Zip,
		v.PartyAffiliation, v.SupportLevel, v.Phone, v.Email, ewktOrNil(v.Location))

	created, err := scanVoter(row)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.Voter{}, fmt.Errorf("voter_id %s: %w", v.VoterID, repo.ErrConflict)
		}
		return repo.Voter{}, fmt.Errorf("create voter: %w", err)
	}
	return created, nil
}

func (r *Repository) GetVoter(ctx context.Context, id uuid.UUID) (repo.Voter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+voterColumns+` FROM voters WHERE id = $1`, id)
	v, err := scanVoter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Voter{}, repo.ErrNotFound
		}
		return repo.Voter{}, fmt.Errorf("get voter: %w", err)
	}
	return v, nil
}

func (r *Repository) ListVoters(ctx context.Context, filter ListFilter) ([]repo.Voter, error) {
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

	if filter.Zip != nil {
		where = append(where, "zip = "+arg(*filter.Zip))
	}
	if filter.City != nil {
		where = append(where, "lower(city) = lower("+arg(*filter.City)+")")
	}
	if filter.Party != nil {
		where = append(where, "party_affiliation = "+arg(*filter.Party))
	}
	if filter.SupportLevel != nil {
		where = append(where, "support_level = "+arg(*filter.SupportLevel))
	}
	if filter.Query != nil {
		p := arg("%" + strings.TrimSpace(*filter.Query) + "%")
		where = append(where, "(first_name ILIKE "+p+" OR last_name ILIKE "+p+")")
	}

	query := `SELECT ` + voterColumns + ` FROM voters`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_name, first_name"
	query += " LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	defer rows.Close()

	voters := []repo.Voter{}
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}

// UpdateVoter persists every mutable column of v. Callers load the row
// first and mutate it in memory.
func (r *Repository) UpdateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
        UPDATE voters
        SET voter_id = $2, first_name = $3, last_name = $4, address = $5, city = $6,
            state = $7, zip = $8, party_affiliation = $9, support_level = $10,
            phone = $11, email = $12, location = ST_GeomFromEWKT($13), updated_at = now()
        WHERE id = $1
        RETURNING `+voterColumns,
		v.ID, v.VoterID, v.FirstName, v.LastName, v.Address, v.City, v.State, v.Zip,
		v.PartyAffiliation, v.SupportLevel, v.Phone, v.Email, ewktOrNil(v.Location))

	updated, err := scanVoter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Voter{}, repo.ErrNotFound
		}
		if isUniqueViolation(err) {
			return repo.Voter{}, fmt.Errorf("voter_id %s: %w", v.VoterID, repo.ErrConflict)
		}
		return repo.Voter{}, fmt.Errorf("update voter: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteVoter(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM voters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete voter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Nearby returns voters within radiusMeters of the reference point,
// closest first. Distance is computed on the geography cast so the radius
// is in meters regardless of latitude.
func (r *Repository) Nearby(ctx context.Context, ref geo.Point, radiusMeters float64, limit int) ([]NearbyVoter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT `+voterColumns+`,
               ST_Distance(location::geography, ST_GeomFromEWKT($1)::geography) AS distance
        FROM voters
        WHERE location IS NOT NULL
          AND ST_DWithin(location::geography, ST_GeomFromEWKT($1)::geography, $2)
        ORDER BY distance
        LIMIT $3`,
		ref.EWKT(), radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("nearby voters: %w", err)
	}
	defer rows.Close()

	voters := []NearbyVoter{}
	for rows.Next() {
		var (
			v   repo.Voter
			wkt *string
			d   float64
		)
		err := rows.Scan(&v.ID, &v.VoterID, &v.FirstName, &v.LastName, &v.Address,
			&v.City, &v.State, &v.Zip, &v.PartyAffiliation, &v.SupportLevel,
			&v.Phone, &v.Email, &wkt, &v.CreatedAt, &v.UpdatedAt, &d)
		if err != nil {
			return nil, fmt.Errorf("scan nearby voter: %w", err)
		}
		if v.Location, err = geo.FromWKTColumn(wkt); err != nil {
			return nil, err
		}
		voters = append(voters, NearbyVoter{Voter: v, DistanceMeters: d})
	}
	return voters, rows.Err()
}

// RecentContacts returns the voter's newest contact logs across all
// assignments, with the logging user's name joined in.
func (r *Repository) RecentContacts(ctx context.Context, voterID uuid.UUID, limit int) ([]ContactSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT cl.id, cl.assignment_id, cl.contact_type, cl.result, cl.support_level,
               cl.contacted_at, cl.user_id, u.full_name
        FROM contact_logs cl
        JOIN users u ON u.id = cl.user_id
        WHERE cl.voter_id = $1
        ORDER BY cl.contacted_at DESC
        LIMIT $2`,
		voterID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent contacts: %w", err)
	}
	defer rows.Close()

	contacts := []ContactSummary{}
	for rows.Next() {
		var c ContactSummary
		err := rows.Scan(&c.ID, &c.AssignmentID, &c.ContactType, &c.Result,
			&c.SupportLevel, &c.ContactedAt, &c.UserID, &c.UserName)
		if err != nil {
			return nil, fmt.Errorf("scan contact summary: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func scanVoter(row pgx.Row) (repo.Voter, error) {
	var (
		v   repo.Voter
		wkt *string
	)
	err := row.Scan(&v.ID, &v.VoterID, &v.FirstName, &v.LastName, &v.Address,
		&v.City, &v.State, &v.Zip, &v.PartyAffiliation, &v.SupportLevel,
		&v.Phone, &v.Email, &wkt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return repo.Voter{}, err
	}
	v.Location, err = geo.FromWKTColumn(wkt)
	return v, err
}

func ewktOrNil(p *geo.Point) *string {
	if p == nil {
		return nil
	}
	s := p.EWKT()
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
