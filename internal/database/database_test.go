package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoespa/MesaYa/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRestaurant(t *testing.T, db *DB) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{
		ID:        uuid.NewString(),
		Slug:      "la-parrilla",
		Name:      "La Parrilla",
		TZ:        "America/Argentina/Buenos_Aires",
		Plan:      "free",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateRestaurant(context.Background(), r))
	return r
}

func seedParty(t *testing.T, db *DB, restaurantID, waitlistID string, createdAt time.Time) *models.Party {
	t.Helper()
	p := &models.Party{
		ID:           uuid.NewString(),
		WaitlistID:   waitlistID,
		RestaurantID: restaurantID,
		Name:         "Ana",
		Phone:        "+541123456789",
		Size:         2,
		State:        models.StateQueued,
		Token:        uuid.NewString(),
		CreatedAt:    createdAt,
	}
	require.NoError(t, db.CreateParty(context.Background(), p))
	return p
}

func TestOpenWaitlistKeepsSingleOpen(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := seedRestaurant(t, db)

	first, err := db.OpenWaitlist(ctx, r.ID)
	require.NoError(t, err)

	second, err := db.OpenWaitlist(ctx, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	open, err := db.GetOpenWaitlist(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	require.NoError(t, db.CloseWaitlist(ctx, second.ID))
	_, err = db.GetOpenWaitlist(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionPartyGuard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := seedRestaurant(t, db)
	wl, err := db.OpenWaitlist(ctx, r.ID)
	require.NoError(t, err)
	p := seedParty(t, db, r.ID, wl.ID, time.Now().UTC())

	now := time.Now().UTC()
	seated, err := db.TransitionParty(ctx, p.ID, models.AllowedStates(models.ActionSeat), models.StateSeated, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateSeated, seated.State)
	require.NotNil(t, seated.SeatedAt)

	// Cancel after seating must fail and leave the row untouched.
	_, err = db.TransitionParty(ctx, p.ID, models.AllowedStates(models.ActionCancel), models.StateCanceled, now)
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StateSeated, invalid.From)
	assert.Equal(t, models.StateCanceled, invalid.Attempted)

	got, err := db.GetParty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSeated, got.State)
	assert.Nil(t, got.CanceledAt)
}

func TestListActivePartiesOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := seedRestaurant(t, db)
	wl, err := db.OpenWaitlist(ctx, r.ID)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	first := seedParty(t, db, r.ID, wl.ID, base)
	second := seedParty(t, db, r.ID, wl.ID, base.Add(time.Minute))
	third := seedParty(t, db, r.ID, wl.ID, base.Add(2*time.Minute))

	_, err = db.TransitionParty(ctx, second.ID, models.AllowedStates(models.ActionNoShow), models.StateNoShow, base.Add(3*time.Minute))
	require.NoError(t, err)

	active, err := db.ListActiveParties(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, third.ID, active[1].ID)
}

func TestIncrementMetricsUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := seedRestaurant(t, db)
	day := "2026-08-29"

	require.NoError(t, db.IncrementMetrics(ctx, r.ID, day, 1, 0, 4))
	require.NoError(t, db.IncrementMetrics(ctx, r.ID, day, 1, 0, 2))
	require.NoError(t, db.IncrementMetrics(ctx, r.ID, day, 0, 1, 0))

	m, err := db.GetMetricsDaily(ctx, r.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Seated)
	assert.Equal(t, 1, m.NoShows)
	assert.Equal(t, 6, m.Covers)

	// Missing day reads as zeros.
	empty, err := db.GetMetricsDaily(ctx, r.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Zero(t, empty.Seated)
}

func TestVerificationLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &models.PhoneVerification{
		ID:        uuid.NewString(),
		Phone:     "+541123456789",
		Code:      "111111",
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now.Add(-time.Minute),
	}
	require.NoError(t, db.CreateVerification(ctx, stale))

	fresh := &models.PhoneVerification{
		ID:        uuid.NewString(),
		Phone:     "+541123456789",
		Code:      "111111",
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
	require.NoError(t, db.CreateVerification(ctx, fresh))

	got, err := db.LatestMatchingVerification(ctx, "+541123456789", "111111", now)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)

	require.NoError(t, db.MarkVerified(ctx, got.ID))
	err = db.MarkVerified(ctx, got.ID)
	assert.True(t, errors.Is(err, ErrConcurrentModification))

	// Consumed rows are filtered out; the stale duplicate is next.
	got, err = db.LatestMatchingVerification(ctx, "+541123456789", "111111", now)
	require.NoError(t, err)
	assert.Equal(t, stale.ID, got.ID)

	_, err = db.LatestMatchingVerification(ctx, "+541123456789", "999999", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasRestaurantAccess(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := seedRestaurant(t, db)

	ok, err := db.HasRestaurantAccess(ctx, "user-1", r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.GrantRestaurantAccess(ctx, "user-1", r.ID, "operator"))
	ok, err = db.HasRestaurantAccess(ctx, "user-1", r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
