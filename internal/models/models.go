// Package models defines the waitlist domain entities and the party
// state machine shared by the engine, storage and API layers.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PartyState is the lifecycle state of a party on a waitlist.
type PartyState string

const (
	StateQueued   PartyState = "queued"
	StateNotified PartyState = "notified"
	StateOnTheWay PartyState = "on_the_way"
	StateSeated   PartyState = "seated"
	StateNoShow   PartyState = "no_show"
	StateCanceled PartyState = "canceled"
)

// Transition actions accepted by the queue engine.
const (
	ActionNotify   = "notify"
	ActionOnTheWay = "on_the_way"
	ActionSeat     = "seat"
	ActionNoShow   = "no_show"
	ActionCancel   = "cancel"
)

// transitionMap lists the source states each action is allowed from.
var transitionMap = map[string][]PartyState{
	ActionNotify:   {StateQueued},
	ActionOnTheWay: {StateQueued, StateNotified},
	ActionSeat:     {StateQueued, StateNotified, StateOnTheWay},
	ActionNoShow:   {StateQueued, StateNotified, StateOnTheWay},
	ActionCancel:   {StateQueued, StateNotified, StateOnTheWay},
}

// transitionTarget maps each action to its resulting state.
var transitionTarget = map[string]PartyState{
	ActionNotify:   StateNotified,
	ActionOnTheWay: StateOnTheWay,
	ActionSeat:     StateSeated,
	ActionNoShow:   StateNoShow,
	ActionCancel:   StateCanceled,
}

// AllowedStates returns the source states the action may fire from.
func AllowedStates(action string) []PartyState {
	return transitionMap[action]
}

// TransitionTarget returns the state an action leads to, or "" for an
// unknown action.
func TransitionTarget(action string) PartyState {
	return transitionTarget[action]
}

// ValidTransition reports whether action may fire from the given state.
func ValidTransition(action string, from PartyState) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state is absorbing.
func IsTerminal(state PartyState) bool {
	switch state {
	case StateSeated, StateNoShow, StateCanceled:
		return true
	}
	return false
}

// InvalidTransitionError is returned when a transition fires outside
// its guard. The party is left untouched.
type InvalidTransitionError struct {
	PartyID   string
	From      PartyState
	Attempted PartyState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("party %s: invalid transition %s -> %s", e.PartyID, e.From, e.Attempted)
}

// Waitlist status values.
const (
	WaitlistOpen   = "open"
	WaitlistClosed = "closed"
)

// Restaurant owns waitlists. Administrative fields only; the engine
// reads name, slug and timezone.
type Restaurant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	TZ        string    `json:"tz"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// Waitlist is the open/closed container parties belong to.
type Waitlist struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Party is a customer group waiting for a table. CreatedAt is immutable
// and is the sole ordering key for queue position.
type Party struct {
	ID           string     `json:"id"`
	WaitlistID   string     `json:"waitlist_id"`
	RestaurantID string     `json:"restaurant_id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Size         int        `json:"size"`
	State        PartyState `json:"state"`
	Token        string     `json:"token"`
	ETAMinutes   *int       `json:"eta_minutes,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
	SeatedAt     *time.Time `json:"seated_at,omitempty"`
	NoShowAt     *time.Time `json:"no_show_at,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
}

// Terminal reports whether the party reached an absorbing state.
func (p *Party) Terminal() bool {
	return IsTerminal(p.State)
}

// Notification channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

// Notification templates.
const (
	TemplateJoinConfirm = "join_confirm"
	TemplateReminder    = "reminder"
	TemplateTableReady  = "table_ready"
)

// Notification delivery outcomes.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is an immutable audit record of one delivery attempt.
// Exactly one is written per dispatch call.
type Notification struct {
	ID         string    `json:"id"`
	PartyID    string    `json:"party_id"`
	Channel    string    `json:"channel"`
	Template   string    `json:"template"`
	Status     string    `json:"status"`
	Cost       float64   `json:"cost,omitempty"`
	ProviderID string    `json:"provider_id,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// PhoneVerification is an ephemeral one-time code record. Superseded
// rows for the same phone remain but are never selected again.
type PhoneVerification struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is past its TTL at the given time.
func (v *PhoneVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// MetricsDaily holds per-restaurant counters for one calendar day.
type MetricsDaily struct {
	RestaurantID string `json:"restaurant_id"`
	Day          string `json:"day"`
	Seated       int    `json:"seated"`
	NoShows      int    `json:"no_shows"`
	Covers       int    `json:"covers"`
}

// QueueStats are the live aggregates shown alongside a queue snapshot.
type QueueStats struct {
	Waiting        int `json:"waiting"`
	AvgWaitMinutes int `json:"avg_wait_minutes"`
	SeatedToday    int `json:"seated_today"`
	NoShowsToday   int `json:"no_shows_today"`
}

// Validation bounds for party input.
const (
	MinPartySize  = 1
	MaxPartySize  = 12
	MinETAMinutes = 5
	MaxETAMinutes = 120
	MaxNameLength = 100
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidatePartyName checks the customer name bounds.
func ValidatePartyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", MaxNameLength)}
	}
	return nil
}

// ValidatePartySize checks the covers bound (1-12).
func ValidatePartySize(size int) error {
	if size < MinPartySize || size > MaxPartySize {
		return &ValidationError{Field: "size", Reason: fmt.Sprintf("must be between %d and %d", MinPartySize, MaxPartySize)}
	}
	return nil
}

// ValidateETAMinutes checks the operator estimate bound (5-120).
// A nil estimate is allowed; the displayed ETA falls back to elapsed wait.
func ValidateETAMinutes(eta *int) error {
	if eta == nil {
		return nil
	}
	if *eta < MinETAMinutes || *eta > MaxETAMinutes {
		return &ValidationError{Field: "eta_minutes", Reason: fmt.Sprintf("must be between %d and %d", MinETAMinutes, MaxETAMinutes)}
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a restaurant name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
