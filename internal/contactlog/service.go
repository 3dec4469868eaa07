package contactlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type contactLogRepository interface {
	CreateContactLog(ctx context.Context, cl repo.ContactLog) (repo.ContactLog, error)
	GetContactLog(ctx context.Context, id uuid.UUID) (repo.ContactLog, error)
	GetAssignmentOwner(ctx context.Context, id uuid.UUID) (repo.Assignment, error)
	ListContactLogs(ctx context.Context, filter ListFilter) ([]WithVoter, error)
	UpdateContactLog(ctx context.Context, cl repo.ContactLog, propagateLevel bool) (repo.ContactLog, error)
	DeleteContactLog(ctx context.Context, id uuid.UUID) error
}

// Service applies ownership policy on top of the contact-log repository.
type Service struct {
	repo contactLogRepository
}

func NewService(r contactLogRepository) *Service {
	return &Service{repo: r}
}

// CreateInput carries one contact attempt. ContactedAt is settable so
// clients can sync attempts logged offline; nil means now.
type CreateInput struct {
	AssignmentID uuid.UUID        `json:"assignment_id"`
	VoterID      uuid.UUID        `json:"voter_id"`
	ContactType  repo.ContactType `json:"contact_type"`
	Result       *string          `json:"result"`
	SupportLevel *int             `json:"support_level"`
	Location     *geo.Point       `json:"location"`
	ContactedAt  *time.Time       `json:"contacted_at"`
}

// UpdateInput uses pointers for partial semantics: nil means keep.
type UpdateInput struct {
	ContactType  *repo.ContactType
	Result       *string
	SupportLevel *int
	Location     *geo.Point
	ContactedAt  *time.Time
}

// BatchFailure reports one rejected item of a batch by input position.
type BatchFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult is the per-item outcome of a batch create.
type BatchResult struct {
	Created []repo.ContactLog `json:"created"`
	Failed  []BatchFailure    `json:"failed"`
}

// Create logs one contact. The assignment must exist (404 to everyone)
// and the caller must be its canvasser or a manager/admin (403). The log
// is stamped with the principal, never a caller-chosen user id.
func (s *Service) Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.ContactLog, error) {
	a, err := s.repo.GetAssignmentOwner(ctx, input.AssignmentID)
	if err != nil {
		return repo.ContactLog{}, err
	}
	if !service.OwnsAssignment(principal, &a) {
		return repo.ContactLog{}, service.ErrForbidden
	}
	if !input.ContactType.Valid() {
		return repo.ContactLog{}, fmt.Errorf("contact_type %q: %w", input.ContactType, service.ErrValidation)
	}
	if err := validSupportLevel(input.SupportLevel); err != nil {
		return repo.ContactLog{}, err
	}

	contactedAt := time.Now().UTC()
	if input.ContactedAt != nil {
		contactedAt = *input.ContactedAt
	}

	return s.repo.CreateContactLog(ctx, repo.ContactLog{
		AssignmentID: input.AssignmentID,
		VoterID:      input.VoterID,
		UserID:       principal.ID,
		ContactType:  input.ContactType,
		Result:       input.Result,
		SupportLevel: input.SupportLevel,
		Location:     input.Location,
		ContactedAt:  contactedAt,
	})
}

// CreateBatch applies Create to each item independently; one bad item
// never blocks the rest.
func (s *Service) CreateBatch(ctx context.Context, principal *repo.User, items []CreateInput) (*BatchResult, error) {
	result := &BatchResult{Created: []repo.ContactLog{}, Failed: []BatchFailure{}}
	for i, item := range items {
		created, err := s.Create(ctx, principal, item)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Index: i, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, created)
	}
	return result, nil
}

// List scopes canvassers to their own logs regardless of filters.
func (s *Service) List(ctx context.Context, principal *repo.User, filter ListFilter) ([]WithVoter, error) {
	if !service.ManagerOrAdmin(principal) {
		filter.UserID = &principal.ID
	}
	if filter.ContactType != nil && !filter.ContactType.Valid() {
		return nil, fmt.Errorf("contact_type %q: %w", *filter.ContactType, service.ErrValidation)
	}
	if err := validSupportLevel(filter.SupportLevel); err != nil {
		return nil, err
	}
	return s.repo.ListContactLogs(ctx, filter)
}

func (s *Service) Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.ContactLog, error) {
	target, err := s.repo.GetContactLog(ctx, id)
	if err != nil {
		return repo.ContactLog{}, err
	}
	if !service.OwnsContactLog(principal, &target) {
		return repo.ContactLog{}, service.ErrForbidden
	}

	if input.ContactType != nil {
		if !input.ContactType.Valid() {
			return repo.ContactLog{}, fmt.Errorf("contact_type %q: %w", *input.ContactType, service.ErrValidation)
		}
		target.ContactType = *input.ContactType
	}
	if input.Result != nil {
		target.Result = input.Result
	}
	if input.SupportLevel != nil {
		if err := validSupportLevel(input.SupportLevel); err != nil {
			return repo.ContactLog{}, err
		}
		target.SupportLevel = input.SupportLevel
	}
	if input.Location != nil {
		target.Location = input.Location
	}
	if input.ContactedAt != nil {
		target.ContactedAt = *input.ContactedAt
	}

	// Only an update that actually carries a support level may write it
	// back to the voter; re-saving an old log must not revive its stale
	// level.
	return s.repo.UpdateContactLog(ctx, target, input.SupportLevel != nil)
}

func (s *Service) Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error {
	target, err := s.repo.GetContactLog(ctx, id)
	if err != nil {
		return err
	}
	if !service.OwnsContactLog(principal, &target) {
		return service.ErrForbidden
	}
	return s.repo.DeleteContactLog(ctx, id)
}

func validSupportLevel(level *int) error {
	if level == nil {
		return nil
	}
	if *level < 1 || *level > 5 {
		return fmt.Errorf("support_level %d out of range: %w", *level, service.ErrValidation)
	}
	return nil
}
