package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nicoespa/MesaYa/internal/metrics"
	"github.com/nicoespa/MesaYa/internal/models"
)

// Recorder persists notification audit rows.
type Recorder interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Receipt describes a successful dispatch.
type Receipt struct {
	Channel    string  `json:"channel"`
	ProviderID string  `json:"provider_id"`
	Cost       float64 `json:"cost,omitempty"`
}

// Dispatcher tries the primary channel, falls back to the secondary,
// and records the final outcome exactly once.
type Dispatcher struct {
	primary   Provider
	secondary Provider
	recorder  Recorder
	limiter   *rate.Limiter
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. The limiter paces outbound sends
// across all callers.
func NewDispatcher(primary, secondary Provider, recorder Recorder, limiter *rate.Limiter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		primary:   primary,
		secondary: secondary,
		recorder:  recorder,
		limiter:   limiter,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		now:       time.Now,
	}
}

// Send delivers the named template. On success the receipt names the
// channel that accepted the message; on double failure the error is an
// *AllChannelsFailed and the single recorded row is attributed to the
// primary channel, since that was the attempt of record.
func (d *Dispatcher) Send(ctx context.Context, template string, params Params) (*Receipt, error) {
	send, ok := templateSends[template]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", template)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("dispatch pacing: %w", err)
		}
	}

	start := d.now()
	defer func() {
		metrics.ObserveDispatchDuration(d.now().Sub(start).Seconds())
	}()

	receipt, primaryErr := send(d.primary, ctx, params)
	if primaryErr == nil {
		d.record(ctx, params.PartyID, d.primary.Channel(), template, models.NotificationSent, &receipt)
		return &Receipt{Channel: d.primary.Channel(), ProviderID: receipt.ID, Cost: receipt.Cost}, nil
	}

	d.logger.Warn().
		Err(primaryErr).
		Str("channel", d.primary.Channel()).
		Str("template", template).
		Str("party_id", params.PartyID).
		Msg("primary channel failed, trying fallback")

	receipt, secondaryErr := send(d.secondary, ctx, params)
	if secondaryErr == nil {
		d.record(ctx, params.PartyID, d.secondary.Channel(), template, models.NotificationSent, &receipt)
		return &Receipt{Channel: d.secondary.Channel(), ProviderID: receipt.ID, Cost: receipt.Cost}, nil
	}

	d.logger.Error().
		AnErr("primary_error", primaryErr).
		AnErr("secondary_error", secondaryErr).
		Str("template", template).
		Str("party_id", params.PartyID).
		Msg("all messaging channels failed")

	d.record(ctx, params.PartyID, d.primary.Channel(), template, models.NotificationFailed, nil)
	return nil, &AllChannelsFailed{Primary: primaryErr, Secondary: secondaryErr}
}

// record writes the single audit row for this dispatch. A storage
// failure here is logged, not returned: the delivery outcome stands.
func (d *Dispatcher) record(ctx context.Context, partyID, channel, template, status string, receipt *ProviderReceipt) {
	n := &models.Notification{
		ID:       uuid.NewString(),
		PartyID:  partyID,
		Channel:  channel,
		Template: template,
		Status:   status,
		SentAt:   d.now().UTC(),
	}
	if receipt != nil {
		n.ProviderID = receipt.ID
		n.Cost = receipt.Cost
	}

	metrics.IncDispatch(channel, status)

	if err := d.recorder.CreateNotification(ctx, n); err != nil {
		d.logger.Error().
			Err(err).
			Str("party_id", partyID).
			Str("template", template).
			Msg("failed to record notification")
	}
}
