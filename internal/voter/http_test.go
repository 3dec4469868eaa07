package voter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

type fakeRepo struct {
	voters   map[uuid.UUID]repo.Voter
	contacts map[uuid.UUID][]ContactSummary
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{voters: map[uuid.UUID]repo.Voter{}, contacts: map[uuid.UUID][]ContactSummary{}}
}

func (f *fakeRepo) CreateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error) {
	for _, existing := range f.voters {
		if existing.VoterID == v.VoterID {
			return repo.Voter{}, repo.ErrConflict
		}
	}
	v.ID = uuid.New()
	f.voters[v.ID] = v
	return v, nil
}

func (f *fakeRepo) GetVoter(ctx context.Context, id uuid.UUID) (repo.Voter, error) {
	v, ok := f.voters[id]
	if !ok {
		return repo.Voter{}, repo.ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) ListVoters(ctx context.Context, filter ListFilter) ([]repo.Voter, error) {
	out := []repo.Voter{}
	for _, v := range f.voters {
		if filter.Zip != nil && v.Zip != *filter.Zip {
			continue
		}
		if filter.SupportLevel != nil &&
			(v.SupportLevel == nil || *v.SupportLevel != *filter.SupportLevel) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeRepo) UpdateVoter(ctx context.Context, v repo.Voter) (repo.Voter, error) {
	if _, ok := f.voters[v.ID]; !ok {
		return repo.Voter{}, repo.ErrNotFound
	}
	f.voters[v.ID] = v
	return v, nil
}

func (f *fakeRepo) DeleteVoter(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.voters[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.voters, id)
	return nil
}

func (f *fakeRepo) Nearby(ctx context.Context, ref geo.Point, radiusMeters float64, limit int) ([]NearbyVoter, error) {
	out := []NearbyVoter{}
	for _, v := range f.voters {
		if v.Location != nil {
			out = append(out, NearbyVoter{Voter: v, DistanceMeters: 42})
		}
	}
	return out, nil
}

func (f *fakeRepo) RecentContacts(ctx context.Context, voterID uuid.UUID, limit int) ([]ContactSummary, error) {
	contacts := f.contacts[voterID]
	if len(contacts) > limit {
		contacts = contacts[:limit]
	}
	return contacts, nil
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
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}

func voterPayload(voterID string) map[string]any {
	return map[string]any{
		"voter_id":   voterID,
		"first_name": "Pat",
		"last_name":  "Doyle",
		"address":    "5 Main St",
		"city":       "Springfield",
		"state":      "MA",
		"zip":        "01101",
		"location":   map[string]float64{"latitude": 42.1, "longitude": -72.59},
	}
}

func TestCreateRequiresManager(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	manager := repo.User{ID: uuid.New(), Role: repo.RoleManager}
	router := newRouter(newFakeRepo())

	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(voterPayload("V100"))), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("canvasser create: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(voterPayload("V100"))), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("manager create: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	// duplicate registration number
	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/", jsonBody(voterPayload("V100"))), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate voter_id: expected 400 got %d", rec.Code)
	}
}

func TestGetIncludesRecentContacts(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	f := newFakeRepo()
	v, _ := f.CreateVoter(context.Background(), repo.Voter{VoterID: "V1", FirstName: "Pat", LastName: "Doyle"})
	f.contacts[v.ID] = []ContactSummary{
		{ID: uuid.New(), ContactType: repo.ContactKnocked, ContactedAt: time.Now(), UserName: "Sam Reyes"},
	}
	router := newRouter(f)

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/"+v.ID.String(), nil), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp struct {
		Data Detail `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data.RecentContacts) != 1 {
		t.Fatalf("expected 1 recent contact got %d", len(resp.Data.RecentContacts))
	}
	if resp.Data.RecentContacts[0].UserName != "Sam Reyes" {
		t.Fatal("contact history should carry the logging user's name")
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/"+uuid.NewString(), nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown voter: expected 404 got %d", rec.Code)
	}
}

func TestNearbyValidation(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	f := newFakeRepo()
	loc := &geo.Point{Latitude: 42.1, Longitude: -72.59}
	f.CreateVoter(context.Background(), repo.Voter{VoterID: "V1", Location: loc})
	router := newRouter(f)

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/nearby", nil), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing coords: expected 422 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/nearby?latitude=91&longitude=0", nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range latitude: expected 422 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/nearby?latitude=42.1&longitude=-72.59&radius_meters=500", nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("nearby: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []NearbyVoter `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].DistanceMeters != 42 {
		t.Fatalf("unexpected nearby result: %+v", resp.Data)
	}
}

func TestUpdateAndDeleteGates(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	manager := repo.User{ID: uuid.New(), Role: repo.RoleManager}
	admin := repo.User{ID: uuid.New(), Role: repo.RoleAdmin}

	f := newFakeRepo()
	v, _ := f.CreateVoter(context.Background(), repo.Voter{VoterID: "V1"})
	router := newRouter(f)

	body := map[string]any{"support_level": 3}

	req := asPrincipal(httptest.NewRequest(http.MethodPut, "/"+v.ID.String(), jsonBody(body)), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("canvasser update: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodPut, "/"+v.ID.String(), jsonBody(body)), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager update: expected 200 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodDelete, "/"+v.ID.String(), nil), &manager)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager delete: expected 403 got %d", rec.Code)
	}

	req = asPrincipal(httptest.NewRequest(http.MethodDelete, "/"+v.ID.String(), nil), &admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204 got %d", rec.Code)
	}
}

func TestListFilters(t *testing.T) {
	canvasser := repo.User{ID: uuid.New(), Role: repo.RoleCanvasser}
	f := newFakeRepo()
	three := 3
	f.CreateVoter(context.Background(), repo.Voter{VoterID: "V1", Zip: "01101", SupportLevel: &three})
	f.CreateVoter(context.Background(), repo.Voter{VoterID: "V2", Zip: "02134"})
	router := newRouter(f)

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/?zip=01101", nil), &canvasser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp struct {
		Data []repo.Voter `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].VoterID != "V1" {
		t.Fatalf("zip filter failed: %+v", resp.Data)
	}

	// support_level outside 1..5 is rejected, not silently empty
	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/?support_level=7", nil), &canvasser)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad support_level filter: expected 422 got %d", rec.Code)
	}
}
