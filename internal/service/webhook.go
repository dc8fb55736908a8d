package service

import (
	"context"
	"log/slog"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

// RegisterWebhookInput holds the parameters for registering a webhook.
type RegisterWebhookInput struct {
	Country      string   `json:"country" validate:"required,len=2"`
	URL          string   `json:"url" validate:"required,url"`
	EventTypes   []string `json:"event_types" validate:"required,min=1,dive,required"`
	EventVersion string   `json:"event_version"`
}

// WebhookService manages the provider's notification webhooks.
type WebhookService struct {
	caller  provider.Caller
	locales LocaleResolver
	logger  *slog.Logger
}

// NewWebhookService creates a webhook service.
func NewWebhookService(caller provider.Caller, locales LocaleResolver, logger *slog.Logger) *WebhookService {
	return &WebhookService{caller: caller, locales: locales, logger: logger}
}

// Register creates a webhook in the country's credential region.
func (s *WebhookService) Register(ctx context.Context, input *RegisterWebhookInput) (*provider.WebhookResponse, error) {
	settings, err := resolve(s.locales, input.Country)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	resp, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointWebhookCreate,
		CredentialID: settings.CredentialID,
		Body: &provider.WebhookRequest{
			URL:          input.URL,
			EventTypes:   input.EventTypes,
			EventVersion: input.EventVersion,
		},
	})
	if err != nil {
		return nil, providerFailure("register webhook failed", err)
	}
	var created provider.WebhookResponse
	if err := resp.Decode(&created); err != nil {
		return nil, providerFailure("register webhook failed", err)
	}
	if created.WebhookID == "" {
		return nil, providerFailure("register webhook failed", missingResult(provider.EndpointWebhookCreate, "webhook_id"))
	}

	s.logger.InfoContext(ctx, "webhook registered",
		slog.String("webhook_id", created.WebhookID),
		slog.String("country", settings.Country),
	)
	return &created, nil
}

// Delete removes a webhook. A provider server error is logged and treated
// as done.
func (s *WebhookService) Delete(ctx context.Context, country, webhookID string) error {
	if webhookID == "" {
		return apperrors.InvalidInput("webhook id is required")
	}
	settings, err := resolve(s.locales, country)
	if err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	if _, err := s.caller.Call(ctx, provider.Request{
		Endpoint:     provider.EndpointWebhookDelete,
		CredentialID: settings.CredentialID,
		PathParams:   []string{webhookID},
	}); err != nil {
		return providerFailure("delete webhook failed", err)
	}

	s.logger.InfoContext(ctx, "webhook deleted", slog.String("webhook_id", webhookID))
	return nil
}
