package voter

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

// recentContactLimit caps the history embedded in a voter detail view.
const recentContactLimit = 10

type voterRepository interface {
	CreateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error)
	GetVoter(ctx context.Context, id uuid.UUID) (repo.Voter, error)
	ListVoters(ctx context.Context, filter ListFilter) ([]repo.Voter, error)
	UpdateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error)
	DeleteVoter(ctx context.Context, id uuid.UUID) error
	Nearby(ctx context.Context, ref geo.Point, radiusMeters float64, limit int) ([]NearbyVoter, error)
	RecentContacts(ctx context.Context, voterID uuid.UUID, limit int) ([]ContactSummary, error)
}

// Service applies role policy on top of the voter directory. Reading is
// open to every authenticated user; writes are gated.
type Service struct {
	repo voterRepository
}

func NewService(r voterRepository) *Service {
	return &Service{repo: r}
}

// Detail is a voter plus their recent contact history.
type Detail struct {
	repo.Voter
	RecentContacts []ContactSummary `json:"recent_contacts"`
}

// CreateInput carries a new directory entry.
type CreateInput struct {
	VoterID          string
	FirstName        string
	LastName         string
	Address          string
	City             string
	State            string
	Zip              string
	PartyAffiliation *string
	SupportLevel     *int
	Phone            *string
	Email            *string
	Location         *geo.Point
}

// UpdateInput uses pointers for partial semantics: nil means keep.
type UpdateInput struct {
	FirstName        *string
	LastName         *string
	Address          *string
	City             *string
	State            *string
	Zip              *string
	PartyAffiliation *string
	SupportLevel     *int
	Phone            *string
	Email            *string
	Location         *geo.Point
}

func (s *Service) Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.Voter, error) {
	if !service.ManagerOrAdmin(principal) {
		return repo.Voter{}, service.ErrForbidden
	}
	if err := validSupportLevel(input.SupportLevel); err != nil {
		return repo.Voter{}, err
	}

	return s.repo.CreateVoter(ctx, repo.Voter{
		VoterID:          input.VoterID,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		Address:          input.Address,
		City:             input.City,
		State:            input.State,
		Zip:              input.Zip,
		PartyAffiliation: input.PartyAffiliation,
		SupportLevel:     input.SupportLevel,
		Phone:            input.Phone,
		Email:            input.Email,
		Location:         input.Location,
	})
}

func (s *Service) List(ctx context.Context, principal *repo.User, filter ListFilter) ([]repo.Voter, error) {
	if filter.SupportLevel != nil {
		if err := validSupportLevel(filter.SupportLevel); err != nil {
			return nil, err
		}
	}
	return s.repo.ListVoters(ctx, filter)
}

// Get returns the voter with their recent contact history.
func (s *Service) Get(ctx context.Context, principal *repo.User, id uuid.UUID) (*Detail, error) {
	v, err := s.repo.GetVoter(ctx, id)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.RecentContacts(ctx, id, recentContactLimit)
	if err != nil {
		return nil, err
	}
	return &Detail{Voter: v, RecentContacts: contacts}, nil
}

func (s *Service) Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.Voter, error) {
	target, err := s.repo.GetVoter(ctx, id)
	if err != nil {
		return repo.Voter{}, err
	}
	if !service.ManagerOrAdmin(principal) {
		return repo.Voter{}, service.ErrForbidden
	}
	if err := validSupportLevel(input.SupportLevel); err != nil {
		return repo.Voter{}, err
	}

	if input.FirstName != nil {
		target.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		target.LastName = *input.LastName
	}
	if input.Address != nil {
		target.Address = *input.Address
	}
	if input.City != nil {
		target.City = *input.City
	}
	if input.State != nil {
		target.State = *input.State
	}
	if input.Zip != nil {
		target.Zip = *input.Zip
	}
	if input.PartyAffiliation != nil {
		target.PartyAffiliation = input.PartyAffiliation
	}
	if input.SupportLevel != nil {
		target.SupportLevel = input.SupportLevel
	}
	if input.Phone != nil {
		target.Phone = input.Phone
	}
	if input.Email != nil {
		target.Email = input.Email
	}
	if input.Location != nil {
		target.Location = input.Location
	}

	return s.repo.UpdateVoter(ctx, target)
}

func (s *Service) Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error {
	if _, err := s.repo.GetVoter(ctx, id); err != nil {
		return err
	}
	if !service.AdminOnly(principal) {
		return service.ErrForbidden
	}
	return s.repo.DeleteVoter(ctx, id)
}

// Nearby lists voters within radiusMeters of ref, closest first.
func (s *Service) Nearby(ctx context.Context, principal *repo.User, ref geo.Point, radiusMeters float64, limit int) ([]NearbyVoter, error) {
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("radius_meters must be positive: %w", service.ErrValidation)
	}
	return s.repo.Nearby(ctx, ref, radiusMeters, limit)
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
