package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicoespa/MesaYa/internal/events"
)

// MetricsStore persists per-restaurant daily counters. Increments are
// atomic upserts; concurrent seatings never lose counts.
type MetricsStore interface {
	IncrementMetrics(ctx context.Context, restaurantID, day string, seated, noShows, covers int) error
}

// Accumulator folds party lifecycle events into the daily counters. It
// subscribes to seated and no-show events; everything else leaves the
// counters alone.
type Accumulator struct {
	store   MetricsStore
	logger  zerolog.Logger
	timeout time.Duration
}

// NewAccumulator builds an accumulator writing into store.
func NewAccumulator(store MetricsStore, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		store:   store,
		logger:  logger.With().Str("component", "metrics_accumulator").Logger(),
		timeout: 5 * time.Second,
	}
}

// Register subscribes the accumulator on the bus.
func (a *Accumulator) Register(bus *events.Bus) {
	bus.Subscribe(events.TypePartySeated, a.handle)
	bus.Subscribe(events.TypePartyNoShow, a.handle)
}

func (a *Accumulator) handle(event events.PartyEvent) {
	// Days roll over at UTC midnight regardless of restaurant timezone.
	day := event.At.UTC().Format("2006-01-02")

	var seated, noShows, covers int
	switch event.Type {
	case events.TypePartySeated:
		seated = 1
		covers = event.Party.Size
	case events.TypePartyNoShow:
		noShows = 1
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.store.IncrementMetrics(ctx, event.Party.RestaurantID, day, seated, noShows, covers); err != nil {
		a.logger.Error().
			Err(err).
			Str("restaurant_id", event.Party.RestaurantID).
			Str("day", day).
			Str("event", event.Type).
			Msg("daily counter update failed")
	}
}
