package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/auth"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type userRepository interface {
	CreateUser(ctx context.Context, u repo.User) (repo.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
	ListUsers(ctx context.Context, filter ListFilter) ([]repo.User, error)
	UpdateUser(ctx context.Context, u repo.User) (repo.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Service applies role policy on top of the users repository.
type Service struct {
	repo userRepository
}

func NewService(r userRepository) *Service {
	return &Service{repo: r}
}

// CreateInput carries admin-created accounts. Self-service registration
// goes through the auth signup endpoint instead.
type CreateInput struct {
	Email    string
	FullName string
	Role     repo.Role
	Phone    *string
	Password string
}

// UpdateInput uses pointers for partial semantics: nil means keep.
type UpdateInput struct {
	Email    *string
	FullName *string
	Role     *repo.Role
	Phone    *string
	Password *string
}

func (s *Service) Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.User, error) {
	if !service.AdminOnly(principal) {
		return repo.User{}, service.ErrForbidden
	}
	if !input.Role.Valid() {
		return repo.User{}, fmt.Errorf("role %q: %w", input.Role, service.ErrValidation)
	}

	hash, err := auth.Hash(input.Password)
	if err != nil {
		return repo.User{}, err
	}

	return s.repo.CreateUser(ctx, repo.User{
		Email:        input.Email,
		FullName:     input.FullName,
		Role:         input.Role,
		Phone:        input.Phone,
		PasswordHash: hash,
	})
}

func (s *Service) List(ctx context.Context, principal *repo.User, filter ListFilter) ([]repo.User, error) {
	if !service.ManagerOrAdmin(principal) {
		return nil, service.ErrForbidden
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, fmt.Errorf("role %q: %w", *filter.Role, service.ErrValidation)
	}
	return s.repo.ListUsers(ctx, filter)
}

// Get returns 404 for a missing user before any role check.
func (s *Service) Get(ctx context.Context, principal *repo.User, id uuid.UUID) (repo.User, error) {
	target, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return repo.User{}, err
	}
	if !service.SelfOrManager(principal, target.ID) {
		return repo.User{}, service.ErrForbidden
	}
	return target, nil
}

func (s *Service) Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.User, error) {
	target, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return repo.User{}, err
	}
	if !service.SelfOrAdmin(principal, target.ID) {
		return repo.User{}, service.ErrForbidden
	}
	// Role escalation is admin territory even on one's own record.
	if input.Role != nil && !service.AdminOnly(principal) {
		return repo.User{}, service.ErrForbidden
	}

	if input.Email != nil {
		target.Email = *input.Email
	}
	if input.FullName != nil {
		target.FullName = *input.FullName
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return repo.User{}, fmt.Errorf("role %q: %w", *input.Role, service.ErrValidation)
		}
		target.Role = *input.Role
	}
	if input.Phone != nil {
		target.Phone = input.Phone
	}
	if input.Password != nil {
		hash, err := auth.Hash(*input.Password)
		if err != nil {
			return repo.User{}, err
		}
		target.PasswordHash = hash
	}

	return s.repo.UpdateUser(ctx, target)
}

func (s *Service) Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error {
	if _, err := s.repo.GetUserByID(ctx, id); err != nil {
		return err
	}
	if !service.AdminOnly(principal) {
		return service.ErrForbidden
	}
	return s.repo.DeleteUser(ctx, id)
}
