// Package billing handles payment-provider webhooks: signature
// verification over a shared secret and premium unlocks on recognized
// purchase events.
package billing

import (
	"context"
	"errors"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"go.uber.org/zap"
)

// ErrInvalidSignature indicates the webhook signature did not verify.
var ErrInvalidSignature = errors.New("billing: invalid webhook signature")

// PremiumUnlocker flips the premium flag for an external user id.
type PremiumUnlocker interface {
	SetPremium(ctx context.Context, externalID string) error
}

// Processor verifies and applies incoming billing webhooks.
type Processor struct {
	webhook *standardwebhooks.Webhook
	users   PremiumUnlocker
	logger  *zap.Logger
}

// NewProcessor constructs a Processor from the shared webhook secret
// (base64, standard-webhooks format).
func NewProcessor(secret string, users PremiumUnlocker, logger *zap.Logger) (*Processor, error) {
	if secret == "" {
		return nil, errors.New("billing: webhook secret required")
	}
	if users == nil {
		return nil, errors.New("billing: premium unlocker required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	webhook, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, err
	}
	return &Processor{webhook: webhook, users: users, logger: logger}, nil
}

// Process verifies the signature headers against the raw body, decodes
// the event and, on a recognized purchase carrying a reference id,
// unlocks premium for that user.
func (p *Processor) Process(ctx context.Context, body []byte, headers http.Header) error {
	if err := p.webhook.Verify(body, headers); err != nil {
		p.logger.Error("invalid webhook signature",
			zap.String("code", "billing.webhook.signature_invalid"),
			zap.Error(err))
		return ErrInvalidSignature
	}

	event, err := DecodeEvent(body)
	if err != nil {
		p.logger.Error("failed to decode webhook payload",
			zap.String("code", "billing.webhook.decode_failed"),
			zap.Error(err))
		return err
	}

	p.logger.Info("received billing webhook",
		zap.String("code", "billing.webhook.received"),
		zap.String("type", event.Type),
		zap.Bool("has_reference_id", event.ReferenceID != ""))

	if !event.IsPurchase() {
		return nil
	}
	if event.ReferenceID == "" {
		p.logger.Error("webhook missing reference id; cannot match user",
			zap.String("code", "billing.webhook.missing_reference"),
			zap.String("type", event.Type))
		return nil
	}

	if err := p.users.SetPremium(ctx, event.ReferenceID); err != nil {
		return err
	}

	p.logger.Info("premium enabled for user",
		zap.String("code", "billing.webhook.premium_unlocked"),
		zap.String("external_id", event.ReferenceID))
	return nil
}
