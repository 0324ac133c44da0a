// Package email delivers alerts through the SendGrid v3 Mail Send API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

const (
	// ProviderName identifies the SendGrid client in the resilience registry.
	ProviderName = "sendgrid"

	// DefaultBaseURL is the SendGrid API base URL.
	DefaultBaseURL = "https://api.sendgrid.com"
)

// Config holds configuration for the SendGrid channel.
type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string

	// HTTPClient executes requests. If nil a resilient client is created.
	HTTPClient resilience.HTTPDoer
	Registry   *resilience.Registry

	Logger zerolog.Logger
}

// Channel sends alert emails.
type Channel struct {
	apiKey     string
	baseURL    string
	from       address
	httpClient resilience.HTTPDoer
	logger     zerolog.Logger
}

// NewChannel creates a SendGrid email channel.
func NewChannel(cfg Config) *Channel {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = 10 * time.Second
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Channel{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		from:       address{Email: cfg.FromEmail, Name: cfg.FromName},
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Method returns the delivery method.
func (c *Channel) Method() notification.Method {
	return notification.MethodEmail
}

type mailPayload struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	CustomArgs       map[string]string `json:"custom_args,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send posts msg to /v3/mail/send. SendGrid answers 202 on success.
func (c *Channel) Send(ctx context.Context, msg notification.Message) error {
	payload := mailPayload{
		Personalizations: []personalization{{To: []address{{Email: msg.Destination}}}},
		From:             c.from,
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/plain", Value: msg.Body}},
		CustomArgs: map[string]string{
			"subject_id": msg.SubjectID,
			"tier":       string(msg.Tier),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Debug().
		Str("subject_id", msg.SubjectID).
		Str("message_id", resp.Header.Get("X-Message-Id")).
		Msg("alert email accepted")
	return nil
}

var _ notification.Channel = (*Channel)(nil)
