package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type assignmentRepository interface {
	CreateAssignment(ctx context.Context, a repo.Assignment, voterIDs []uuid.UUID) (repo.Assignment, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (repo.Assignment, error)
	GetEnriched(ctx context.Context, id uuid.UUID) (Enriched, error)
	ListAssignments(ctx context.Context, filter ListFilter) ([]Enriched, error)
	UpdateAssignment(ctx context.Context, a repo.Assignment) (repo.Assignment, error)
	DeleteAssignment(ctx context.Context, id uuid.UUID) error
	Roster(ctx context.Context, assignmentID uuid.UUID, withLastContact bool) ([]RosterEntry, error)
	Progress(ctx context.Context, assignmentID uuid.UUID) (voterCount, contactedCount int, err error)
	AddVoters(ctx context.Context, assignmentID uuid.UUID, voterIDs []uuid.UUID) error
	RemoveVoter(ctx context.Context, assignmentID, voterID uuid.UUID) error
	ReorderVoters(ctx context.Context, assignmentID uuid.UUID, orderedVoterIDs []uuid.UUID) error
}

// Service applies ownership policy on top of the assignments repository.
// Canvassers see and touch only their own assignments; managers and
// admins see everything.
type Service struct {
	repo assignmentRepository
}

func NewService(r assignmentRepository) *Service {
	return &Service{repo: r}
}

// Detail is an enriched assignment plus its ordered walk list.
type Detail struct {
	Enriched
	Voters []RosterEntry `json:"voters"`
}

// Progress summarizes how far a walk list has been worked.
type Progress struct {
	VoterCount     int                   `json:"voter_count"`
	ContactedCount int                   `json:"contacted_count"`
	Percent        float64               `json:"percent"`
	Status         repo.AssignmentStatus `json:"status"`
}

// CreateInput carries a new assignment and its initial roster.
type CreateInput struct {
	UserID       uuid.UUID
	Name         string
	Description  *string
	AssignedDate *time.Time
	DueDate      *time.Time
	VoterIDs     []uuid.UUID
}

// UpdateInput uses pointers for partial semantics: nil means keep.
// Reassigning UserID is manager/admin territory.
type UpdateInput struct {
	UserID      *uuid.UUID
	Name        *string
	Description *string
	DueDate     *time.Time
	Status      *repo.AssignmentStatus
}

func (s *Service) Create(ctx context.Context, principal *repo.User, input CreateInput) (*Enriched, error) {
	if !service.ManagerOrAdmin(principal) {
		return nil, service.ErrForbidden
	}

	assignedDate := time.Now().UTC()
	if input.AssignedDate != nil {
		assignedDate = *input.AssignedDate
	}

	created, err := s.repo.CreateAssignment(ctx, repo.Assignment{
		UserID:       input.UserID,
		Name:         input.Name,
		Description:  input.Description,
		AssignedDate: assignedDate,
		DueDate:      input.DueDate,
		Status:       repo.StatusPending,
	}, input.VoterIDs)
	if err != nil {
		return nil, err
	}

	enriched, err := s.repo.GetEnriched(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	return &enriched, nil
}

// List scopes canvassers to their own assignments regardless of any
// user_id filter they pass.
func (s *Service) List(ctx context.Context, principal *repo.User, filter ListFilter) ([]Enriched, error) {
	if !service.ManagerOrAdmin(principal) {
		filter.UserID = &principal.ID
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", *filter.Status, service.ErrValidation)
	}
	return s.repo.ListAssignments(ctx, filter)
}

// Get returns the assignment with its ordered roster, each voter carrying
// the latest contact made under this assignment. Missing id is 404 to
// every caller before any ownership check.
func (s *Service) Get(ctx context.Context, principal *repo.User, id uuid.UUID) (*Detail, error) {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.OwnsAssignment(principal, &a) {
		return nil, service.ErrForbidden
	}

	enriched, err := s.repo.GetEnriched(ctx, id)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.Roster(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return &Detail{Enriched: enriched, Voters: roster}, nil
}

func (s *Service) Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (*Enriched, error) {
	target, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.OwnsAssignment(principal, &target) {
		return nil, service.ErrForbidden
	}
	if input.UserID != nil && !service.ManagerOrAdmin(principal) {
		return nil, service.ErrForbidden
	}

	if input.UserID != nil {
		target.UserID = *input.UserID
	}
	if input.Name != nil {
		target.Name = *input.Name
	}
	if input.Description != nil {
		target.Description = input.Description
	}
	if input.DueDate != nil {
		target.DueDate = input.DueDate
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("status %q: %w", *input.Status, service.ErrValidation)
		}
		target.Status = *input.Status
	}

	if _, err := s.repo.UpdateAssignment(ctx, target); err != nil {
		return nil, err
	}
	enriched, err := s.repo.GetEnriched(ctx, id)
	if err != nil {
		return nil, err
	}
	return &enriched, nil
}

func (s *Service) Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error {
	if _, err := s.repo.GetAssignment(ctx, id); err != nil {
		return err
	}
	if !service.ManagerOrAdmin(principal) {
		return service.ErrForbidden
	}
	return s.repo.DeleteAssignment(ctx, id)
}

// Voters returns the ordered roster without contact enrichment.
func (s *Service) Voters(ctx context.Context, principal *repo.User, id uuid.UUID) ([]RosterEntry, error) {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.OwnsAssignment(principal, &a) {
		return nil, service.ErrForbidden
	}
	return s.repo.Roster(ctx, id, false)
}

func (s *Service) GetProgress(ctx context.Context, principal *repo.User, id uuid.UUID) (*Progress, error) {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.OwnsAssignment(principal, &a) {
		return nil, service.ErrForbidden
	}

	voterCount, contactedCount, err := s.repo.Progress(ctx, id)
	if err != nil {
		return nil, err
	}

	percent := 0.0
	if voterCount > 0 {
		percent = float64(contactedCount) / float64(voterCount) * 100
	}
	return &Progress{
		VoterCount:     voterCount,
		ContactedCount: contactedCount,
		Percent:        percent,
		Status:         a.Status,
	}, nil
}

func (s *Service) AddVoters(ctx context.Context, principal *repo.User, id uuid.UUID, voterIDs []uuid.UUID) error {
	if _, err := s.repo.GetAssignment(ctx, id); err != nil {
		return err
	}
	if !service.ManagerOrAdmin(principal) {
		return service.ErrForbidden
	}
	if len(voterIDs) == 0 {
		return fmt.Errorf("voter_ids must not be empty: %w", service.ErrValidation)
	}
	return s.repo.AddVoters(ctx, id, voterIDs)
}

func (s *Service) RemoveVoter(ctx context.Context, principal *repo.User, id, voterID uuid.UUID) error {
	if _, err := s.repo.GetAssignment(ctx, id); err != nil {
		return err
	}
	if !service.ManagerOrAdmin(principal) {
		return service.ErrForbidden
	}
	return s.repo.RemoveVoter(ctx, id, voterID)
}

// Reorder lets the assigned canvasser rearrange their own walk list;
// managers and admins can rearrange any.
func (s *Service) Reorder(ctx context.Context, principal *repo.User, id uuid.UUID, orderedVoterIDs []uuid.UUID) error {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if !service.OwnsAssignment(principal, &a) {
		return service.ErrForbidden
	}
	if len(orderedVoterIDs) == 0 {
		return fmt.Errorf("voter_ids must not be empty: %w", service.ErrValidation)
	}
	return s.repo.ReorderVoters(ctx, id, orderedVoterIDs)
}
