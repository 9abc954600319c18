package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicoespa/MesaYa/internal/models"
)

// smsCost is the approximate per-message cost recorded on the audit
// row.
const smsCost = 0.0075

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSProvider sends plain-text messages through the Twilio REST API.
type SMSProvider struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
}

// NewSMSProvider creates the SMS channel.
func NewSMSProvider(accountSID, authToken, fromNumber string, timeout time.Duration) *SMSProvider {
	return &SMSProvider{
		baseURL:    twilioAPIBase,
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		client:     &http.Client{Timeout: timeout},
	}
}

// Channel implements Provider.
func (p *SMSProvider) Channel() string { return models.ChannelSMS }

type twilioResponse struct {
	SID string `json:"sid"`
}

func (p *SMSProvider) sendSMS(ctx context.Context, to, body string) (ProviderReceipt, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ProviderReceipt{}, err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProviderReceipt{}, fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return ProviderReceipt{}, fmt.Errorf("sms api error: status %d", resp.StatusCode)
	}

	var parsed twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ProviderReceipt{}, fmt.Errorf("sms response: %w", err)
	}
	return ProviderReceipt{ID: parsed.SID, Cost: smsCost}, nil
}

// SendJoinConfirm implements Provider.
func (p *SMSProvider) SendJoinConfirm(ctx context.Context, params Params) (ProviderReceipt, error) {
	body := fmt.Sprintf(
		"Hola %s, te anotamos en la lista de espera de %s. Te avisaremos por mensaje cuando tu mesa esté lista. Ver tu lugar en la fila: %s",
		params.Name, params.RestaurantName, params.Link)
	return p.sendSMS(ctx, params.To, body)
}

// SendReminder implements Provider.
func (p *SMSProvider) SendReminder(ctx context.Context, params Params) (ProviderReceipt, error) {
	body := fmt.Sprintf(
		"Hola %s, estás en la fila de %s. Tiempo estimado: %d minutos. Estado: En espera. Ver tu lugar: %s",
		params.Name, params.RestaurantName, params.ETAMinutes, params.Link)
	return p.sendSMS(ctx, params.To, body)
}

// SendTableReady implements Provider.
func (p *SMSProvider) SendTableReady(ctx context.Context, params Params) (ProviderReceipt, error) {
	body := fmt.Sprintf(
		"¡Hola %s! Tu mesa está lista en %s. Por favor acercate al restaurante. Ver detalles: %s",
		params.Name, params.RestaurantName, params.Link)
	return p.sendSMS(ctx, params.To, body)
}

// SendVerificationCode sends a one-time code. Verification codes go
// out over SMS only; there is no fallback channel for them.
func (p *SMSProvider) SendVerificationCode(ctx context.Context, to, code string) (ProviderReceipt, error) {
	body := fmt.Sprintf("Tu código de verificación para MesaYa es: %s. Válido por 10 minutos.", code)
	return p.sendSMS(ctx, to, body)
}
