package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type stubAuth struct {
	signupErr  error
	loginErr   error
	loggedOut  []string
	lastSignup service.SignupInput
}

func (s *stubAuth) Signup(ctx context.Context, input service.SignupInput) (*service.TokenResult, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	s.lastSignup = input
	return &service.TokenResult{UserID: uuid.NewString(), Email: input.Email, Token: "tok", Role: input.Role}, nil
}

func (s *stubAuth) Login(ctx context.Context, email, password string) (*service.TokenResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &service.TokenResult{UserID: uuid.NewString(), Email: email, Token: "tok", Role: repo.RoleCanvasser}, nil
}

func (s *stubAuth) Logout(ctx context.Context, jti string, expiry time.Time) error {
	s.loggedOut = append(s.loggedOut, jti)
	return nil
}

func testHandler(stub *stubAuth) (*Handler, chi.Router) {
	h := &Handler{auth: stub, validate: validator.New()}
	r := chi.NewRouter()
	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)
	r.Get("/auth/me", h.me)
	r.Post("/auth/logout", h.logout)
	return h, r
}

func jsonBody(body any) *bytes.Buffer {
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}

func TestSignupValidation(t *testing.T) {
	_, router := testHandler(&stubAuth{})

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"ok", map[string]any{"email": "a@example.com", "full_name": "A", "role": "canvasser", "password": "password123"}, http.StatusCreated},
		{"bad email", map[string]any{"email": "nope", "full_name": "A", "role": "canvasser", "password": "password123"}, http.StatusUnprocessableEntity},
		{"short password", map[string]any{"email": "a@example.com", "full_name": "A", "role": "canvasser", "password": "short"}, http.StatusUnprocessableEntity},
		{"unknown role", map[string]any{"email": "a@example.com", "full_name": "A", "role": "boss", "password": "password123"}, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/signup", jsonBody(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	_, router := testHandler(&stubAuth{signupErr: service.ErrEmailTaken})

	body := map[string]any{"email": "dup@example.com", "full_name": "A", "role": "canvasser", "password": "password123"}
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", jsonBody(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT got %s", resp.Error.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, router := testHandler(&stubAuth{loginErr: service.ErrInvalidCredentials})

	body := map[string]any{"email": "a@example.com", "password": "wrong"}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	_, router := testHandler(&stubAuth{})

	principal := &repo.User{ID: uuid.New(), Email: "me@example.com", Role: repo.RoleManager}
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), httpmiddleware.ContextKeyPrincipal, principal))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp struct {
		Data repo.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Email != "me@example.com" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	// without middleware context it is a 401
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestLogoutRevokesCurrentToken(t *testing.T) {
	stub := &stubAuth{}
	_, router := testHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	ctx := context.WithValue(req.Context(), httpmiddleware.ContextKeyTokenID, "jti-123")
	ctx = context.WithValue(ctx, httpmiddleware.ContextKeyTokenExpiry, time.Now().Add(time.Minute))
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(stub.loggedOut) != 1 || stub.loggedOut[0] != "jti-123" {
		t.Fatalf("expected jti-123 revoked, got %v", stub.loggedOut)
	}
}
