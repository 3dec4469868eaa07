package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/votefield/canvass/internal/auth"
	"github.com/votefield/canvass/internal/repo"
)

var (
	// ErrInvalidCredentials means the email or password did not match.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrEmailTaken means the signup email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

type authRepository interface {
	GetUserByEmail(ctx context.Context, email string) (repo.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
	CreateUser(ctx context.Context, user repo.User) (repo.User, error)
}

// AuthService owns signup, login and token revocation. Sessions are
// stateless: every request re-validates its bearer token.
type AuthService struct {
	repo     authRepository
	jwt      *auth.JWTManager
	denylist *auth.Denylist
}

// NewAuthService wires the service.
func NewAuthService(r authRepository, jwtMgr *auth.JWTManager, denylist *auth.Denylist) *AuthService {
	return &AuthService{repo: r, jwt: jwtMgr, denylist: denylist}
}

// JWT exposes the token manager for middleware wiring.
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Denylist exposes the revocation store for middleware wiring.
func (s *AuthService) Denylist() *auth.Denylist {
	return s.denylist
}

// TokenResult is the response shape for signup and login.
type TokenResult struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Token  string    `json:"token"`
	Role   repo.Role `json:"role"`
}

// SignupInput carries validated signup fields.
type SignupInput struct {
	Email    string
	FullName string
	Role     repo.Role
	Phone    *string
	Password string
}

// Signup registers a user and issues a token. Duplicate emails fail with
// ErrEmailTaken.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*TokenResult, error) {
	hash, err := auth.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, repo.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		FullName:     input.FullName,
		Role:         input.Role,
		Phone:        input.Phone,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return s.issueToken(user)
}

// Login verifies credentials and issues a token. Unknown emails and bad
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: password verify failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: wrong password")
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, jti string, expiry time.Time) error {
	if jti == "" {
		return nil
	}
	return s.denylist.Revoke(ctx, jti, expiry)
}

// GetUserByID loads a user record; used by Me and the auth middleware.
func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *AuthService) issueToken(user repo.User) (*TokenResult, error) {
	token, _, err := s.jwt.GenerateAccessToken(user.ID.String())
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		UserID: user.ID.String(),
		Email:  user.Email,
		Token:  token,
		Role:   user.Role,
	}, nil
}
