package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nicoespa/MesaYa/internal/models"
)

// whatsAppCost is the approximate per-message template cost recorded
// on the audit row.
const whatsAppCost = 0.05

// WhatsAppProvider sends template messages through the WhatsApp Cloud
// API.
type WhatsAppProvider struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	client        *http.Client
}

// NewWhatsAppProvider creates a WhatsApp channel. timeout bounds one
// send attempt; a timeout counts as a channel failure and triggers the
// dispatcher's fallback.
func NewWhatsAppProvider(baseURL, phoneNumberID, accessToken string, timeout time.Duration) *WhatsAppProvider {
	return &WhatsAppProvider{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		client:        &http.Client{Timeout: timeout},
	}
}

// Channel implements Provider.
func (p *WhatsAppProvider) Channel() string { return models.ChannelWhatsApp }

type waComponent struct {
	Type       string        `json:"type"`
	Parameters []waParameter `json:"parameters"`
}

type waParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func textParams(values ...string) []waParameter {
	params := make([]waParameter, 0, len(values))
	for _, v := range values {
		params = append(params, waParameter{Type: "text", Text: v})
	}
	return params
}

func (p *WhatsAppProvider) sendTemplate(ctx context.Context, templateName, to string, components []waComponent) (ProviderReceipt, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(to, "+"),
		"type":              "template",
		"template": map[string]any{
			"name":       templateName,
			"language":   map[string]string{"code": "es"},
			"components": components,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ProviderReceipt{}, err
	}

	url := fmt.Sprintf("%s/%s/messages", p.baseURL, p.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ProviderReceipt{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProviderReceipt{}, fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return ProviderReceipt{}, fmt.Errorf("whatsapp api error: status %d", resp.StatusCode)
	}

	var parsed waResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ProviderReceipt{}, fmt.Errorf("whatsapp response: %w", err)
	}

	id := "unknown"
	if len(parsed.Messages) > 0 && parsed.Messages[0].ID != "" {
		id = parsed.Messages[0].ID
	}
	return ProviderReceipt{ID: id, Cost: whatsAppCost}, nil
}

// SendJoinConfirm implements Provider.
func (p *WhatsAppProvider) SendJoinConfirm(ctx context.Context, params Params) (ProviderReceipt, error) {
	components := []waComponent{{
		Type:       "body",
		Parameters: textParams(params.Name, params.RestaurantName, params.Link),
	}}
	return p.sendTemplate(ctx, models.TemplateJoinConfirm, params.To, components)
}

// SendReminder implements Provider.
func (p *WhatsAppProvider) SendReminder(ctx context.Context, params Params) (ProviderReceipt, error) {
	components := []waComponent{{
		Type: "body",
		Parameters: textParams(
			params.Name,
			params.RestaurantName,
			strconv.Itoa(params.ETAMinutes),
			"En espera",
			params.Link,
		),
	}}
	return p.sendTemplate(ctx, models.TemplateReminder, params.To, components)
}

// SendTableReady implements Provider.
func (p *WhatsAppProvider) SendTableReady(ctx context.Context, params Params) (ProviderReceipt, error) {
	components := []waComponent{{
		Type: "body",
		Parameters: textParams(
			params.RestaurantName,
			fmt.Sprintf("Hola %s, tu mesa está lista!", params.Name),
		),
	}}
	return p.sendTemplate(ctx, models.TemplateTableReady, params.To, components)
}
