// Package notify delivers templated messages to customers over a
// primary channel with a secondary fallback, recording exactly one
// audit row per dispatch regardless of how many attempts were made.
package notify

import (
	"context"
	"fmt"

	"github.com/nicoespa/MesaYa/internal/models"
)

// Params are the channel-agnostic template parameters. ETAMinutes is
// only read by the reminder template.
type Params struct {
	PartyID        string
	To             string
	Name           string
	Link           string
	RestaurantName string
	ETAMinutes     int
}

// ProviderReceipt is what a channel returns for an accepted message.
type ProviderReceipt struct {
	ID   string
	Cost float64
}

// Provider is a notification channel. Each implementation renders its
// own message body for the same semantic parameters.
type Provider interface {
	Channel() string
	SendJoinConfirm(ctx context.Context, p Params) (ProviderReceipt, error)
	SendReminder(ctx context.Context, p Params) (ProviderReceipt, error)
	SendTableReady(ctx context.Context, p Params) (ProviderReceipt, error)
}

// templateSends maps template names to provider methods, so the
// dispatcher stays generic over both the provider and the template.
var templateSends = map[string]func(Provider, context.Context, Params) (ProviderReceipt, error){
	models.TemplateJoinConfirm: Provider.SendJoinConfirm,
	models.TemplateReminder:    Provider.SendReminder,
	models.TemplateTableReady:  Provider.SendTableReady,
}

// AllChannelsFailed is returned when both channels rejected the
// message. It carries both causes for diagnostics.
type AllChannelsFailed struct {
	Primary   error
	Secondary error
}

func (e *AllChannelsFailed) Error() string {
	return fmt.Sprintf("all messaging channels failed: primary: %v; secondary: %v", e.Primary, e.Secondary)
}

func (e *AllChannelsFailed) Unwrap() []error {
	return []error{e.Primary, e.Secondary}
}
