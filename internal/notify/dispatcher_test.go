package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoespa/MesaYa/internal/models"
)

// stubProvider answers every template send the same way.
type stubProvider struct {
	channel string
	err     error
	receipt ProviderReceipt
	calls   int
}

func (s *stubProvider) Channel() string { return s.channel }

func (s *stubProvider) send() (ProviderReceipt, error) {
	s.calls++
	if s.err != nil {
		return ProviderReceipt{}, s.err
	}
	return s.receipt, nil
}

func (s *stubProvider) SendJoinConfirm(context.Context, Params) (ProviderReceipt, error) {
	return s.send()
}
func (s *stubProvider) SendReminder(context.Context, Params) (ProviderReceipt, error) {
	return s.send()
}
func (s *stubProvider) SendTableReady(context.Context, Params) (ProviderReceipt, error) {
	return s.send()
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []models.Notification
	err     error
}

func (m *memoryRecorder) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *n)
	return nil
}

func newTestDispatcher(primary, secondary Provider, recorder Recorder) *Dispatcher {
	return NewDispatcher(primary, secondary, recorder, nil, zerolog.New(io.Discard))
}

func testParams() Params {
	return Params{
		PartyID:        "party-1",
		To:             "+541123456789",
		Name:           "Ana",
		Link:           "https://mesaya.app/status/tok",
		RestaurantName: "La Parrilla",
		ETAMinutes:     15,
	}
}

func TestSendPrimarySucceeds(t *testing.T) {
	primary := &stubProvider{channel: models.ChannelWhatsApp, receipt: ProviderReceipt{ID: "wamid.1", Cost: 0.05}}
	secondary := &stubProvider{channel: models.ChannelSMS}
	recorder := &memoryRecorder{}

	receipt, err := newTestDispatcher(primary, secondary, recorder).Send(context.Background(), models.TemplateJoinConfirm, testParams())
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWhatsApp, receipt.Channel)
	assert.Equal(t, "wamid.1", receipt.ProviderID)
	assert.Zero(t, secondary.calls)

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, models.NotificationSent, rec.Status)
	assert.Equal(t, models.ChannelWhatsApp, rec.Channel)
	assert.Equal(t, models.TemplateJoinConfirm, rec.Template)
	assert.Equal(t, "party-1", rec.PartyID)
}

func TestSendFallsBackToSecondary(t *testing.T) {
	primary := &stubProvider{channel: models.ChannelWhatsApp, err: errors.New("graph api down")}
	secondary := &stubProvider{channel: models.ChannelSMS, receipt: ProviderReceipt{ID: "SM123", Cost: 0.0075}}
	recorder := &memoryRecorder{}

	receipt, err := newTestDispatcher(primary, secondary, recorder).Send(context.Background(), models.TemplateTableReady, testParams())
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, receipt.Channel)
	assert.Equal(t, "SM123", receipt.ProviderID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, models.NotificationSent, recorder.records[0].Status)
	assert.Equal(t, models.ChannelSMS, recorder.records[0].Channel)
}

func TestSendBothChannelsFail(t *testing.T) {
	primaryErr := errors.New("graph api down")
	secondaryErr := errors.New("twilio down")
	primary := &stubProvider{channel: models.ChannelWhatsApp, err: primaryErr}
	secondary := &stubProvider{channel: models.ChannelSMS, err: secondaryErr}
	recorder := &memoryRecorder{}

	_, err := newTestDispatcher(primary, secondary, recorder).Send(context.Background(), models.TemplateReminder, testParams())

	var failed *AllChannelsFailed
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, secondaryErr)

	// Exactly one record, attributed to the primary attempt of record.
	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, models.NotificationFailed, rec.Status)
	assert.Equal(t, models.ChannelWhatsApp, rec.Channel)
	assert.Empty(t, rec.ProviderID)
}

func TestSendUnknownTemplate(t *testing.T) {
	primary := &stubProvider{channel: models.ChannelWhatsApp}
	recorder := &memoryRecorder{}

	_, err := newTestDispatcher(primary, &stubProvider{channel: models.ChannelSMS}, recorder).Send(context.Background(), "welcome_back", testParams())
	assert.Error(t, err)
	assert.Zero(t, primary.calls)
	assert.Empty(t, recorder.records)
}

func TestSendRecorderFailureDoesNotFailDispatch(t *testing.T) {
	primary := &stubProvider{channel: models.ChannelWhatsApp, receipt: ProviderReceipt{ID: "wamid.9"}}
	recorder := &memoryRecorder{err: errors.New("db unreachable")}

	receipt, err := newTestDispatcher(primary, &stubProvider{channel: models.ChannelSMS}, recorder).Send(context.Background(), models.TemplateJoinConfirm, testParams())
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWhatsApp, receipt.Channel)
}
