package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoespa/MesaYa/internal/access"
	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/queue"
	"github.com/nicoespa/MesaYa/internal/verify"
)

var testSecret = []byte("test-secret")

type fakeQueue struct {
	joinFn         func(context.Context, queue.JoinRequest) (*queue.JoinResult, error)
	notifyFn       func(context.Context, string) (*queue.TransitionResult, error)
	transitionFn   func(context.Context, string) (*models.Party, error)
	partyFn        func(context.Context, string) (*models.Party, error)
	snapshotFn     func(context.Context, string) (*queue.Snapshot, error)
	statusFn       func(context.Context, string) (*queue.Status, error)
	statusActionFn func(context.Context, string, string) (*models.Party, error)
}

func (f *fakeQueue) Join(ctx context.Context, req queue.JoinRequest) (*queue.JoinResult, error) {
	return f.joinFn(ctx, req)
}

func (f *fakeQueue) Notify(ctx context.Context, id string) (*queue.TransitionResult, error) {
	return f.notifyFn(ctx, id)
}

func (f *fakeQueue) OnTheWay(ctx context.Context, id string) (*models.Party, error) {
	return f.transitionFn(ctx, id)
}

func (f *fakeQueue) Seat(ctx context.Context, id string) (*models.Party, error) {
	return f.transitionFn(ctx, id)
}

func (f *fakeQueue) NoShow(ctx context.Context, id string) (*models.Party, error) {
	return f.transitionFn(ctx, id)
}

func (f *fakeQueue) Cancel(ctx context.Context, id string) (*models.Party, error) {
	return f.transitionFn(ctx, id)
}

func (f *fakeQueue) Update(ctx context.Context, id string, _ queue.UpdateRequest) (*models.Party, error) {
	return f.transitionFn(ctx, id)
}

func (f *fakeQueue) Party(ctx context.Context, id string) (*models.Party, error) {
	return f.partyFn(ctx, id)
}

func (f *fakeQueue) Snapshot(ctx context.Context, restaurantID string) (*queue.Snapshot, error) {
	return f.snapshotFn(ctx, restaurantID)
}

func (f *fakeQueue) StatusByToken(ctx context.Context, token string) (*queue.Status, error) {
	return f.statusFn(ctx, token)
}

func (f *fakeQueue) StatusAction(ctx context.Context, token, action string) (*models.Party, error) {
	return f.statusActionFn(ctx, token, action)
}

type fakeVerifier struct {
	sendFn    func(context.Context, string, string) (int, error)
	confirmFn func(context.Context, string, string) (bool, error)
}

func (f *fakeVerifier) SendCode(ctx context.Context, ip, phone string) (int, error) {
	return f.sendFn(ctx, ip, phone)
}

func (f *fakeVerifier) ConfirmCode(ctx context.Context, phone, code string) (bool, error) {
	return f.confirmFn(ctx, phone, code)
}

type fakeStore struct {
	restaurants map[string]*models.Restaurant
	open        map[string]*models.Waitlist
}

func (f *fakeStore) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	if r, ok := f.restaurants[id]; ok {
		return r, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetRestaurantBySlug(_ context.Context, slug string) (*models.Restaurant, error) {
	for _, r := range f.restaurants {
		if r.Slug == slug {
			return r, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetOpenWaitlist(_ context.Context, restaurantID string) (*models.Waitlist, error) {
	if wl, ok := f.open[restaurantID]; ok {
		return wl, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) OpenWaitlist(_ context.Context, restaurantID string) (*models.Waitlist, error) {
	wl := &models.Waitlist{ID: "wl-new", RestaurantID: restaurantID, Status: models.WaitlistOpen}
	f.open[restaurantID] = wl
	return wl, nil
}

func (f *fakeStore) CloseWaitlist(_ context.Context, id string) error {
	for restaurantID, wl := range f.open {
		if wl.ID == id {
			delete(f.open, restaurantID)
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeStore) ListPartyHistory(context.Context, string, time.Time, int) ([]models.Party, error) {
	return nil, nil
}

func (f *fakeStore) ListMetricsRange(context.Context, string, string, string) ([]models.MetricsDaily, error) {
	return nil, nil
}

func staffToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newTestServer(q Queue, v Verifier, store Store, checker access.Checker) *Server {
	return NewServer(q, v, store, checker, testSecret, zerolog.Nop())
}

func doJSON(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStaffRoutesRequireToken(t *testing.T) {
	srv := newTestServer(&fakeQueue{}, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodGet, "/api/queue?restaurantId=r1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/queue?restaurantId=r1", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateParty(t *testing.T) {
	q := &fakeQueue{
		joinFn: func(_ context.Context, req queue.JoinRequest) (*queue.JoinResult, error) {
			return &queue.JoinResult{
				Party:      &models.Party{ID: "p1", RestaurantID: req.RestaurantID, State: models.StateQueued},
				StatusLink: "https://mesaya.app/status/tok",
			}, nil
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	body := `{"restaurant_id":"r1","name":"Martina","phone":"+541123456789","size":4}`
	rec := doJSON(t, srv, http.MethodPost, "/api/party", body, staffToken(t, "u1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var result queue.JoinResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "p1", result.Party.ID)
	assert.NotEmpty(t, result.StatusLink)
}

func TestCreatePartyValidationError(t *testing.T) {
	q := &fakeQueue{
		joinFn: func(context.Context, queue.JoinRequest) (*queue.JoinResult, error) {
			return nil, &models.ValidationError{Field: "size", Reason: "must be between 1 and 12"}
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	body := `{"restaurant_id":"r1","name":"Martina","phone":"+541123456789","size":40}`
	rec := doJSON(t, srv, http.MethodPost, "/api/party", body, staffToken(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"size"`)
}

type denyAll struct{}

func (denyAll) AssertRestaurantAccess(_ context.Context, userID, restaurantID string) error {
	return &access.AccessDeniedError{UserID: userID, RestaurantID: restaurantID}
}

func TestCreatePartyAccessDenied(t *testing.T) {
	srv := newTestServer(&fakeQueue{}, &fakeVerifier{}, &fakeStore{}, denyAll{})

	body := `{"restaurant_id":"r1","name":"Martina","phone":"+541123456789","size":4}`
	rec := doJSON(t, srv, http.MethodPost, "/api/party", body, staffToken(t, "u1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPartyActionConflict(t *testing.T) {
	q := &fakeQueue{
		partyFn: func(_ context.Context, id string) (*models.Party, error) {
			return &models.Party{ID: id, RestaurantID: "r1", State: models.StateSeated}, nil
		},
		transitionFn: func(_ context.Context, id string) (*models.Party, error) {
			return nil, &models.InvalidTransitionError{PartyID: id, From: models.StateSeated, Attempted: models.StateCanceled}
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodPost, "/api/party/p1/cancel", "{}", staffToken(t, "u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"seated"`)
}

func TestQueueRequiresRestaurantID(t *testing.T) {
	srv := newTestServer(&fakeQueue{}, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodGet, "/api/queue", "", staffToken(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueNoOpenWaitlist(t *testing.T) {
	q := &fakeQueue{
		snapshotFn: func(context.Context, string) (*queue.Snapshot, error) {
			return nil, queue.ErrNoOpenWaitlist
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodGet, "/api/queue?restaurantId=r1", "", staffToken(t, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicStatus(t *testing.T) {
	q := &fakeQueue{
		statusFn: func(_ context.Context, token string) (*queue.Status, error) {
			if token != "tok" {
				return nil, database.ErrNotFound
			}
			return &queue.Status{
				Party:      queue.Entry{Party: models.Party{ID: "p1", State: models.StateQueued}, Position: 2, IsCurrentParty: true},
				Restaurant: &models.Restaurant{Name: "La Parrilla"},
			}, nil
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodGet, "/api/status/tok", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"position":2`)

	rec = doJSON(t, srv, http.MethodGet, "/api/status/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicStatusAction(t *testing.T) {
	q := &fakeQueue{
		statusActionFn: func(_ context.Context, token, action string) (*models.Party, error) {
			if action == "teleport" {
				return nil, queue.ErrUnknownStatusAction
			}
			return &models.Party{ID: "p1", State: models.StateOnTheWay}, nil
		},
	}
	srv := newTestServer(q, &fakeVerifier{}, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodPost, "/api/status/tok", `{"action":"on_the_way"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/status/tok", `{"action":"teleport"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifySendRateLimited(t *testing.T) {
	v := &fakeVerifier{
		sendFn: func(context.Context, string, string) (int, error) {
			return 0, &verify.RateLimitedError{RetryAfter: 90 * time.Second}
		},
	}
	srv := newTestServer(&fakeQueue{}, v, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodPost, "/api/verify/send", `{"phone":"+541123456789"}`, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retry_after_seconds":90`)
}

func TestVerifyConfirm(t *testing.T) {
	v := &fakeVerifier{
		confirmFn: func(_ context.Context, _, code string) (bool, error) {
			return code == "123456", nil
		},
	}
	srv := newTestServer(&fakeQueue{}, v, &fakeStore{}, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodPost, "/api/verify/confirm", `{"phone":"+541123456789","code":"123456"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verified":true`)

	rec = doJSON(t, srv, http.MethodPost, "/api/verify/confirm", `{"phone":"+541123456789","code":"000000"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verified":false`)
}

func TestJoinLookup(t *testing.T) {
	store := &fakeStore{
		restaurants: map[string]*models.Restaurant{
			"r1": {ID: "r1", Slug: "la-parrilla", Name: "La Parrilla", Plan: "pro"},
		},
		open: map[string]*models.Waitlist{
			"r1": {ID: "wl1", RestaurantID: "r1", Status: models.WaitlistOpen},
		},
	}
	srv := newTestServer(&fakeQueue{}, &fakeVerifier{}, store, access.AllowAll{})

	rec := doJSON(t, srv, http.MethodGet, "/api/join/la-parrilla", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"open":true`)
	assert.NotContains(t, rec.Body.String(), "pro")

	rec = doJSON(t, srv, http.MethodGet, "/api/join/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitlistOpenClose(t *testing.T) {
	store := &fakeStore{
		restaurants: map[string]*models.Restaurant{"r1": {ID: "r1"}},
		open:        map[string]*models.Waitlist{},
	}
	srv := newTestServer(&fakeQueue{}, &fakeVerifier{}, store, access.AllowAll{})
	token := staffToken(t, "u1")

	rec := doJSON(t, srv, http.MethodPost, "/api/waitlist/open", `{"restaurant_id":"r1"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/waitlist/close", `{"restaurant_id":"r1"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/waitlist/close", `{"restaurant_id":"r1"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
