package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/models"
)

// Entry is a party decorated with its live queue placement. Position
// counts active parties ordered by arrival, starting at 1. The
// displayed ETA is the operator estimate when set, otherwise the
// elapsed wait.
type Entry struct {
	models.Party
	Position        int  `json:"position"`
	WaitTimeMinutes int  `json:"wait_time_minutes"`
	DisplayedETA    int  `json:"displayed_eta_minutes"`
	IsCurrentParty  bool `json:"is_current_party,omitempty"`
}

// Snapshot is the staff view of an open waitlist.
type Snapshot struct {
	Waitlist *models.Waitlist  `json:"waitlist"`
	Parties  []Entry           `json:"parties"`
	Stats    models.QueueStats `json:"stats"`
}

// Snapshot returns the live queue for the restaurant's open waitlist.
func (e *Engine) Snapshot(ctx context.Context, restaurantID string) (*Snapshot, error) {
	waitlist, err := e.repo.GetOpenWaitlist(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNoOpenWaitlist
		}
		return nil, err
	}

	parties, err := e.repo.ListActiveParties(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	entries := e.decorate(parties, now, "")

	stats := models.QueueStats{Waiting: len(entries)}
	if len(entries) > 0 {
		total := 0
		for _, entry := range entries {
			total += entry.DisplayedETA
		}
		stats.AvgWaitMinutes = (total + len(entries)/2) / len(entries)
	}

	daily, err := e.repo.GetMetricsDaily(ctx, restaurantID, now.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("daily metrics: %w", err)
	}
	stats.SeatedToday = daily.Seated
	stats.NoShowsToday = daily.NoShows

	return &Snapshot{Waitlist: waitlist, Parties: entries, Stats: stats}, nil
}

// Status is the customer view behind a status token: their own entry
// plus the queue around them.
type Status struct {
	Party      Entry              `json:"party"`
	Restaurant *models.Restaurant `json:"restaurant"`
	Queue      []Entry            `json:"queue"`
}

// StatusByToken resolves the public status page for a party token. A
// terminal party still resolves, with position 0.
func (e *Engine) StatusByToken(ctx context.Context, token string) (*Status, error) {
	party, err := e.repo.GetPartyByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	restaurant, err := e.repo.GetRestaurant(ctx, party.RestaurantID)
	if err != nil {
		return nil, err
	}

	active, err := e.repo.ListActiveParties(ctx, party.RestaurantID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	queue := e.decorate(active, now, party.ID)

	own := Entry{Party: *party, IsCurrentParty: true}
	for _, entry := range queue {
		if entry.ID == party.ID {
			own = entry
			break
		}
	}
	if own.Position == 0 && !party.Terminal() {
		// Active but not in the listing: treat as freshly read.
		own.WaitTimeMinutes = waitMinutes(party.CreatedAt, now)
		own.DisplayedETA = displayedETA(party, own.WaitTimeMinutes)
	}

	return &Status{Party: own, Restaurant: restaurant, Queue: queue}, nil
}

// Public actions a customer may trigger from the status page.
const (
	StatusActionOnTheWay = "on_the_way"
	StatusActionCancel   = "cancel"
	StatusActionDelay    = "delay"
)

// ErrUnknownStatusAction is returned for an unsupported public action.
var ErrUnknownStatusAction = errors.New("unknown status action")

// StatusAction applies a customer-initiated action to the party behind
// the token. "delay" is acknowledged without changing state.
func (e *Engine) StatusAction(ctx context.Context, token, action string) (*models.Party, error) {
	party, err := e.repo.GetPartyByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	switch action {
	case StatusActionOnTheWay:
		return e.OnTheWay(ctx, party.ID)
	case StatusActionCancel:
		return e.Cancel(ctx, party.ID)
	case StatusActionDelay:
		e.logger.Info().Str("party_id", party.ID).Msg("party asked for more time")
		return party, nil
	default:
		return nil, ErrUnknownStatusAction
	}
}

func (e *Engine) decorate(parties []models.Party, now time.Time, currentID string) []Entry {
	entries := make([]Entry, 0, len(parties))
	for i, party := range parties {
		wait := waitMinutes(party.CreatedAt, now)
		entries = append(entries, Entry{
			Party:           party,
			Position:        i + 1,
			WaitTimeMinutes: wait,
			DisplayedETA:    displayedETA(&party, wait),
			IsCurrentParty:  party.ID == currentID,
		})
	}
	return entries
}

func waitMinutes(createdAt, now time.Time) int {
	minutes := int(now.Sub(createdAt).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

func displayedETA(party *models.Party, waitMinutes int) int {
	if party.ETAMinutes != nil {
		return *party.ETAMinutes
	}
	return waitMinutes
}
