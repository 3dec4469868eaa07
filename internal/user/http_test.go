package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

type fakeRepo struct {
	users map[uuid.UUID]repo.User
}

func newFakeRepo(users ...repo.User) *fakeRepo {
	f := &fakeRepo{users: map[uuid.UUID]repo.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeRepo) CreateUser(ctx context.Context, u repo.User) (repo.User, error) {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repo.User{}, repo.ErrConflict
		}
	}
	u.ID = uuid.New()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error) {
	u, ok := f.users[id]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) ListUsers(ctx context.Context, filter ListFilter) ([]repo.User, error) {
	out := []repo.User{}
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) UpdateUser(ctx context.Context, u repo.User) (repo.User, error) {
	if _, ok := f.users[u.ID]; !ok {
		return repo.User{}, repo.ErrNotFound
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func newRouter(f *fakeRepo) chi.Router {
	r := chi.NewRouter()
	NewHandler(NewService(f)).RegisterRoutes(r)
	return r
}

func asPrincipal(req *http.Request, u *repo.User) *http.Request {
	ctx := context.WithValue(req.Context(), httpmiddleware.ContextKeyPrincipal, u)
	return req.WithContext(ctx)
}

func jsonBody(body any) *bytes.Buffer {
	if body == nil {
		return bytes.NewBuffer(nil)
	}
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}

func TestListRequiresManager(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	manager := repo.User{ID: uuid.New(), Role: repo.RoleManager}
	router := newRouter(newFakeRepo(canvasser, manager))

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("canvasser list: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager list: expected 200 got %d", rec.Code)
	}
}

func TestGetSelfAndOthers(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser, Email: "c@example.com"}
	other := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser, Email: "o@example.com"}
	router := newRouter(newFakeRepo(canvasser, other))

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/"+canvasser.ID.String(), nil), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get self: expected 200 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/"+other.ID.String(), nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("get other: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/"+uuid.NewString(), nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: expected 404 got %d", rec.Code)
	}
}

func TestRoleChangeIsAdminOnly(t *testing.T) {
	manager := repo.User{ID: uuid.New(), Role: repo.RoleManager}
	admin := repo.User{ID: uuid.New(), Role: repo.RoleAdmin}
	router := newRouter(newFakeRepo(manager, admin))

	body := map[string]any{"role": "admin"}

	// even on their own record
	req := asPrincipal(httptest.NewRequest(http.MethodPut, "/"+manager.ID.String(), jsonBody(body)), &manager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager self role change: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodPut, "/"+manager.ID.String(), jsonBody(body)), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin role change: expected 200 got %d", rec.Code)
	}
}

func TestCreateAndDeleteAreAdminOnly(t *testing.T) {
	admin := repo.User{ID: uuid.New(), Role: repo.RoleAdmin}
	manager := repo.User{ID: uuid.New(), Role: repo.RoleManager}
	f := newFakeRepo(admin, manager)
	router := newRouter(f)

	body := map[string]any{
		"email": "new@example.com", "full_name": "New User",
		"role": "canvasser", "password": "password123",
	}

	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(body)), &manager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager create: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(body)), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(body)), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email: expected 400 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodDelete, "/"+manager.ID.String(), nil), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager delete: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodDelete, "/"+manager.ID.String(), nil), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204 got %d", rec.Code)
	}
}

func TestCreateRejectsBadPayload(t *testing.T) {
	admin := repo.User{ID: uuid.New(), Role: repo.RoleAdmin}
	router := newRouter(newFakeRepo(admin))

	body := map[string]any{"email": "not-an-email", "full_name": "X", "role": "canvasser", "password": "password123"}
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(body)), &admin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad email: expected 422 got %d", rec.Code)
	}

	body = map[string]any{"email": "ok@example.com", "full_name": "X", "role": "superuser", "password": "password123"}
	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(body)), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad role: expected 422 got %d", rec.Code)
	}
}
