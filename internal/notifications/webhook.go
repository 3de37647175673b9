package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/config"
	"github.com/shini4i/deployment-notifier/internal/helpers"
	"github.com/shini4i/deployment-notifier/internal/models"
)

const (
	maxErrorBodySize = 2 * 1024 // 2 KB
	sendTimeout      = 30 * time.Second
)

// NotificationStrategy defines the contract for delivering watch results.
type NotificationStrategy interface {
	Send(ctx context.Context, result models.Result) error
}

// HTTPClient defines the interface for a client that can perform HTTP requests.
// This allows for mocking in unit tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier orchestrates the configured notification strategies.
type Notifier struct {
	strategies []NotificationStrategy
}

// NewNotifier constructs a Notifier with the supplied strategies.
func NewNotifier(strategies ...NotificationStrategy) *Notifier {
	return &Notifier{strategies: strategies}
}

// Send dispatches the result using all registered strategies and joins encountered errors.
func (n *Notifier) Send(ctx context.Context, result models.Result) error {
	if n == nil {
		return nil
	}

	var errs []error
	for _, strategy := range n.strategies {
		if strategy == nil {
			continue
		}

		if err := strategy.Send(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WebhookStrategy holds the configuration and a pre-compiled template for sending webhooks.
type WebhookStrategy struct {
	url                  string
	token                string
	authorizationHeader  string
	contentType          string
	allowedResponseCodes []int
	client               HTTPClient
	template             *template.Template
}

// templateFuncs are available to webhook formats. json renders a value as a JSON literal,
// quotes included.
var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	},
}

// NewWebhookStrategy creates and initializes the webhook strategy.
func NewWebhookStrategy(cfg *config.WebhookConfig, client HTTPClient) (*WebhookStrategy, error) {
	if cfg == nil {
		return nil, errors.New("webhook configuration cannot be nil")
	}
	if !cfg.Enabled {
		return nil, errors.New("webhook strategy disabled")
	}
	if client == nil {
		return nil, errors.New("HTTPClient cannot be nil")
	}
	if strings.TrimSpace(cfg.Format) == "" {
		return nil, errors.New("webhook format cannot be empty")
	}

	tmpl, err := template.New("webhook").Funcs(templateFuncs).Option("missingkey=error").Parse(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook template: %w", err)
	}

	return &WebhookStrategy{
		url:                  cfg.Url,
		token:                cfg.Token,
		authorizationHeader:  cfg.AuthorizationHeader,
		contentType:          cfg.ContentType,
		allowedResponseCodes: cfg.AllowedResponseCodes,
		client:               client,
		template:             tmpl,
	}, nil
}

// Send delivers the webhook notification for the provided result.
func (s *WebhookStrategy) Send(ctx context.Context, result models.Result) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var payload bytes.Buffer
	if err := s.template.Execute(&payload, result); err != nil {
		return fmt.Errorf("failed to execute webhook template: %w", err)
	}

	log.Debug().Str("id", result.SessionId).Msgf("Sending webhook payload: %s", payload.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &payload)
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", s.contentType)
	if s.token != "" {
		req.Header.Set(s.authorizationHeader, s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Str("id", result.SessionId).Msg("Failed to close response body")
		}
	}()

	if !helpers.Contains(s.allowedResponseCodes, resp.StatusCode) {
		lr := io.LimitReader(resp.Body, maxErrorBodySize)
		body, readErr := io.ReadAll(lr)
		if readErr != nil {
			return fmt.Errorf("received non-allowed status code %d, and failed to read response body: %w", resp.StatusCode, readErr)
		}
		return fmt.Errorf("received non-allowed status code %d: %s", resp.StatusCode, string(body))
	}

	if _, err = io.Copy(io.Discard, resp.Body); err != nil {
		log.Warn().Err(err).Str("id", result.SessionId).Msg("Failed to discard response body on success")
	}

	return nil
}
