// Package queue implements the waitlist engine: party lifecycle,
// queue position and ETA computation, and the side channels fired on
// transitions.
package queue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/events"
	"github.com/nicoespa/MesaYa/internal/metrics"
	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/notify"
	"github.com/nicoespa/MesaYa/internal/phone"
)

// ErrNoOpenWaitlist is returned when a restaurant has no open waitlist
// to join.
var ErrNoOpenWaitlist = errors.New("no open waitlist")

// ErrNotFound is returned when a party or restaurant does not exist.
var ErrNotFound = database.ErrNotFound

// Repository is the storage surface the engine needs.
type Repository interface {
	GetOpenWaitlist(ctx context.Context, restaurantID string) (*models.Waitlist, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	CreateParty(ctx context.Context, p *models.Party) error
	GetParty(ctx context.Context, id string) (*models.Party, error)
	GetPartyByToken(ctx context.Context, token string) (*models.Party, error)
	ListActiveParties(ctx context.Context, restaurantID string) ([]models.Party, error)
	TransitionParty(ctx context.Context, id string, from []models.PartyState, to models.PartyState, now time.Time) (*models.Party, error)
	UpdatePartyFields(ctx context.Context, id, name, phoneNumber string, size int, etaMinutes *int, notes string) error
	GetMetricsDaily(ctx context.Context, restaurantID, day string) (*models.MetricsDaily, error)
}

// Dispatcher sends customer notifications. Dispatch failures never
// roll back the business action that triggered them.
type Dispatcher interface {
	Send(ctx context.Context, template string, params notify.Params) (*notify.Receipt, error)
}

// Engine owns the party state machine.
type Engine struct {
	repo       Repository
	dispatcher Dispatcher
	bus        *events.Bus
	baseURL    string
	region     string
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates the engine. baseURL is the public origin status links
// are built on; region is the default phone numbering plan.
func New(repo Repository, dispatcher Dispatcher, bus *events.Bus, baseURL, region string, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:       repo,
		dispatcher: dispatcher,
		bus:        bus,
		baseURL:    baseURL,
		region:     region,
		logger:     logger.With().Str("component", "queue").Logger(),
		now:        time.Now,
	}
}

// JoinRequest is the input for adding a party, whether from the public
// join form or a staff manual add.
type JoinRequest struct {
	RestaurantID string
	Name         string
	Phone        string
	Size         int
	ETAMinutes   *int
	Notes        string
}

func (r *JoinRequest) validate() error {
	if err := models.ValidatePartyName(r.Name); err != nil {
		return err
	}
	if err := models.ValidatePartySize(r.Size); err != nil {
		return err
	}
	return models.ValidateETAMinutes(r.ETAMinutes)
}

// JoinResult is a created party plus its public status link. Warning
// is set when the confirmation message could not be delivered; the
// join itself still succeeded.
type JoinResult struct {
	Party      *models.Party `json:"party"`
	StatusLink string        `json:"status_link"`
	Warning    string        `json:"warning,omitempty"`
}

// Join adds a party to the restaurant's open waitlist.
func (e *Engine) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	waitlist, err := e.repo.GetOpenWaitlist(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNoOpenWaitlist
		}
		return nil, err
	}

	normalized, err := phone.Normalize(req.Phone, e.region)
	if err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	party := &models.Party{
		ID:           uuid.NewString(),
		WaitlistID:   waitlist.ID,
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Phone:        normalized,
		Size:         req.Size,
		State:        models.StateQueued,
		Token:        token,
		ETAMinutes:   req.ETAMinutes,
		Notes:        req.Notes,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.repo.CreateParty(ctx, party); err != nil {
		return nil, err
	}

	metrics.IncPartyJoined()
	e.bus.Publish(events.PartyEvent{Type: events.TypePartyJoined, Party: *party, At: party.CreatedAt})

	result := &JoinResult{Party: party, StatusLink: e.statusLink(token)}

	// Best effort: confirmation failure must not fail the join.
	if warning := e.dispatch(ctx, party, models.TemplateJoinConfirm); warning != "" {
		result.Warning = warning
	}

	e.logger.Info().
		Str("party_id", party.ID).
		Str("restaurant_id", party.RestaurantID).
		Int("size", party.Size).
		Msg("party joined waitlist")

	return result, nil
}

// TransitionResult is a completed transition. Warning is set when a
// notification triggered by the transition could not be delivered.
type TransitionResult struct {
	Party   *models.Party `json:"party"`
	Channel string        `json:"channel,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// Notify moves a queued party to notified and tells the customer the
// table is ready.
func (e *Engine) Notify(ctx context.Context, partyID string) (*TransitionResult, error) {
	party, err := e.transition(ctx, partyID, models.ActionNotify)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Party: party}
	receipt, warning := e.dispatchReceipt(ctx, party, models.TemplateTableReady)
	if warning != "" {
		result.Warning = warning
	} else if receipt != nil {
		result.Channel = receipt.Channel
	}
	return result, nil
}

// OnTheWay records that the customer confirmed they are coming.
func (e *Engine) OnTheWay(ctx context.Context, partyID string) (*models.Party, error) {
	return e.transition(ctx, partyID, models.ActionOnTheWay)
}

// Seat marks the party seated. Daily counters are updated by the
// accumulator subscribed to the transition event.
func (e *Engine) Seat(ctx context.Context, partyID string) (*models.Party, error) {
	return e.transition(ctx, partyID, models.ActionSeat)
}

// NoShow marks the party a no-show.
func (e *Engine) NoShow(ctx context.Context, partyID string) (*models.Party, error) {
	return e.transition(ctx, partyID, models.ActionNoShow)
}

// Cancel cancels a party from any non-terminal state.
func (e *Engine) Cancel(ctx context.Context, partyID string) (*models.Party, error) {
	return e.transition(ctx, partyID, models.ActionCancel)
}

var eventTypes = map[string]string{
	models.ActionNotify:   events.TypePartyNotified,
	models.ActionOnTheWay: events.TypePartyOnTheWay,
	models.ActionSeat:     events.TypePartySeated,
	models.ActionNoShow:   events.TypePartyNoShow,
	models.ActionCancel:   events.TypePartyCanceled,
}

// transition fires one state machine action. The guard check and the
// write are a single conditional update in the repository; a losing
// concurrent request surfaces as *models.InvalidTransitionError.
func (e *Engine) transition(ctx context.Context, partyID, action string) (*models.Party, error) {
	now := e.now().UTC()
	party, err := e.repo.TransitionParty(ctx, partyID, models.AllowedStates(action), models.TransitionTarget(action), now)
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(action)
	e.bus.Publish(events.PartyEvent{Type: eventTypes[action], Party: *party, At: now})

	e.logger.Info().
		Str("party_id", party.ID).
		Str("action", action).
		Str("state", string(party.State)).
		Msg("party transitioned")

	return party, nil
}

// UpdateRequest carries the staff-editable party fields.
type UpdateRequest struct {
	Name       string
	Phone      string
	Size       int
	ETAMinutes *int
	Notes      string
}

// Update replaces a party's editable fields. Allowed in any state; no
// transition semantics.
func (e *Engine) Update(ctx context.Context, partyID string, req UpdateRequest) (*models.Party, error) {
	if err := models.ValidatePartyName(req.Name); err != nil {
		return nil, err
	}
	if err := models.ValidatePartySize(req.Size); err != nil {
		return nil, err
	}
	if err := models.ValidateETAMinutes(req.ETAMinutes); err != nil {
		return nil, err
	}

	normalized, err := phone.Normalize(req.Phone, e.region)
	if err != nil {
		return nil, err
	}

	if err := e.repo.UpdatePartyFields(ctx, partyID, req.Name, normalized, req.Size, req.ETAMinutes, req.Notes); err != nil {
		return nil, err
	}
	return e.repo.GetParty(ctx, partyID)
}

// Party returns a party by id.
func (e *Engine) Party(ctx context.Context, partyID string) (*models.Party, error) {
	return e.repo.GetParty(ctx, partyID)
}

func (e *Engine) statusLink(token string) string {
	return e.baseURL + "/status/" + token
}

// dispatch sends a template for the party and reduces the outcome to a
// warning string, empty on success.
func (e *Engine) dispatch(ctx context.Context, party *models.Party, template string) string {
	_, warning := e.dispatchReceipt(ctx, party, template)
	return warning
}

func (e *Engine) dispatchReceipt(ctx context.Context, party *models.Party, template string) (*notify.Receipt, string) {
	restaurant, err := e.repo.GetRestaurant(ctx, party.RestaurantID)
	if err != nil {
		e.logger.Error().Err(err).Str("party_id", party.ID).Msg("restaurant lookup for dispatch failed")
		return nil, "notification could not be sent"
	}

	params := notify.Params{
		PartyID:        party.ID,
		To:             party.Phone,
		Name:           party.Name,
		Link:           e.statusLink(party.Token),
		RestaurantName: restaurant.Name,
	}
	if party.ETAMinutes != nil {
		params.ETAMinutes = *party.ETAMinutes
	}

	receipt, err := e.dispatcher.Send(ctx, template, params)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("party_id", party.ID).
			Str("template", template).
			Msg("notification dispatch failed")
		return nil, "notification could not be sent"
	}
	return receipt, ""
}

// newToken returns 32 random bytes hex-encoded: the unguessable public
// capability for the party's status page.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
