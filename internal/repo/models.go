package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
)

// Role is the closed set of user roles. Authorization never compares raw
// strings outside this package and the policy functions.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleCanvasser Role = "canvasser"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCanvasser:
		return true
	}
	return false
}

// AssignmentStatus is the assignment lifecycle state. Any status may be
// set by update; there is no enforced transition graph.
type AssignmentStatus string

const (
	StatusPending    AssignmentStatus = "pending"
	StatusInProgress AssignmentStatus = "in_progress"
	StatusCompleted  AssignmentStatus = "completed"
	StatusCancelled  AssignmentStatus = "cancelled"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ContactType classifies one contact attempt.
type ContactType string

const (
	ContactKnocked  ContactType = "knocked"
	ContactPhone    ContactType = "phone"
	ContactText     ContactType = "text"
	ContactEmail    ContactType = "email"
	ContactNotHome  ContactType = "not_home"
	ContactRefused  ContactType = "refused"
	ContactMoved    ContactType = "moved"
	ContactDeceased ContactType = "deceased"
)

func (t ContactType) Valid() bool {
	switch t {
	case ContactKnocked, ContactPhone, ContactText, ContactEmail,
		ContactNotHome, ContactRefused, ContactMoved, ContactDeceased:
		return true
	}
	return false
}

// User is a field worker or staff account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PasswordHash string `json:"-"`
}

// Voter is a canvassing target. Referenced by rosters and contact logs
// but owned by neither.
type Voter struct {
	ID               uuid.UUID  `json:"id"`
	VoterID          string     `json:"voter_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Zip              string     `json:"zip"`
	PartyAffiliation *string    `json:"party_affiliation,omitempty"`
	SupportLevel     *int       `json:"support_level,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Location         *geo.Point `json:"location"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Assignment is one unit of canvassing work owned by a single user.
type Assignment struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Name         string           `json:"name"`
	Description  *string          `json:"description,omitempty"`
	AssignedDate time.Time        `json:"assigned_date"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	Status       AssignmentStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// AssignmentVoter links a voter into an assignment's walk list.
type AssignmentVoter struct {
	ID            uuid.UUID `json:"id"`
	AssignmentID  uuid.UUID `json:"assignment_id"`
	VoterID       uuid.UUID `json:"voter_id"`
	SequenceOrder *int      `json:"sequence_order,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ContactLog records one contact attempt, including where the canvasser
// stood when logging it.
type ContactLog struct {
	ID           uuid.UUID   `json:"id"`
	AssignmentID uuid.UUID   `json:"assignment_id"`
	VoterID      uuid.UUID   `json:"voter_id"`
	UserID       uuid.UUID   `json:"user_id"`
	ContactType  ContactType `json:"contact_type"`
	Result       *string     `json:"result,omitempty"`
	SupportLevel *int        `json:"support_level,omitempty"`
	Location     *geo.Point  `json:"location"`
	ContactedAt  time.Time   `json:"contacted_at"`
	CreatedAt    time.Time   `json:"created_at"`
}
