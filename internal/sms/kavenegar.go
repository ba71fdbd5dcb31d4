package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const defaultKavenegarBaseURL = "https://api.kavenegar.com"

// Kavenegar is the production Gateway. Requests are form-encoded POSTs; the
// API reports success through the nested return.status field, 200 meaning
// accepted.
type Kavenegar struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *otelzap.Logger
}

// KavenegarConfig carries the client settings.
type KavenegarConfig struct {
	APIKey  string
	BaseURL string // empty selects the production endpoint
	Timeout time.Duration
}

// NewKavenegar creates a Kavenegar client.
func NewKavenegar(cfg KavenegarConfig, logger *otelzap.Logger) *Kavenegar {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultKavenegarBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Kavenegar{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func (k *Kavenegar) Lookup(ctx context.Context, receptor, token, token2, template string) error {
	form := url.Values{
		"receptor": {receptor},
		"token":    {token},
		"template": {template},
	}
	if token2 != "" {
		form.Set("token2", token2)
	}
	return k.post(ctx, "verify/lookup", form)
}

func (k *Kavenegar) Send(ctx context.Context, receptor, message, sender string) error {
	form := url.Values{
		"receptor": {receptor},
		"message":  {message},
	}
	if sender != "" {
		form.Set("sender", sender)
	}
	return k.post(ctx, "sms/send", form)
}

func (k *Kavenegar) post(ctx context.Context, endpoint string, form url.Values) error {
	u := fmt.Sprintf("%s/v1/%s/%s.json", k.baseURL, k.apiKey, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading sms response: %w", err)
	}

	var parsed kavenegarResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decoding sms response (http %d): %w", resp.StatusCode, err)
	}
	if parsed.Return.Status != 200 {
		k.logger.Warn("SMS rejected by provider",
			zap.String("endpoint", endpoint),
			zap.Int("provider_status", parsed.Return.Status),
			zap.String("provider_message", parsed.Return.Message))
		return fmt.Errorf("sms %s rejected: %s (status %d)", endpoint, parsed.Return.Message, parsed.Return.Status)
	}
	return nil
}

var _ Gateway = (*Kavenegar)(nil)
