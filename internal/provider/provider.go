package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrMissingAPIKey indicates the provider credential was never configured.
// Surfaced before any network call is attempted.
var ErrMissingAPIKey = errors.New("provider: api key not configured")

// ProviderError wraps a network, HTTP, or payload failure from the
// remote rates API.
type ProviderError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode != 0:
		return fmt.Sprintf("rates api error (%d): %s", e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("rates api error (%d)", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("rates api error: %v", e.Err)
	default:
		return "rates api error"
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateProvider retrieves a snapshot of rates relative to a pivot currency.
type RateProvider interface {
	FetchPivotRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Options parameterise the exchange-rate API client.
type Options struct {
	BaseURL       string
	APIKey        string
	PivotCurrency string
	Timeout       time.Duration
	UserAgent     string
}

// Client fetches pivot-relative rates over HTTP.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a rates API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://v6.exchangerate-api.com/v6"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "rate_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPivotRates performs one GET against the rates endpoint and returns
// the currency-code to rate mapping, all relative to the pivot currency.
func (c *Client) FetchPivotRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if strings.TrimSpace(c.opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if c.opts.PivotCurrency == "" {
		return nil, errors.New("provider: pivot currency not configured")
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, c.opts.APIKey, c.opts.PivotCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fintrack/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var body ratesResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("decode payload: %w", err)}
	}

	if len(body.ConversionRates) == 0 {
		return nil, &ProviderError{Detail: "empty conversion_rates in response"}
	}

	rates := make(map[string]decimal.Decimal, len(body.ConversionRates))
	for code, raw := range body.ConversionRates {
		rate, convErr := decimal.NewFromString(raw.String())
		if convErr != nil {
			return nil, &ProviderError{Err: fmt.Errorf("parse rate for %s: %w", code, convErr)}
		}
		rates[strings.ToUpper(code)] = rate
	}

	c.logger.Debug().Int("currencies", len(rates)).Str("pivot", c.opts.PivotCurrency).Msg("fetched pivot rates")
	return rates, nil
}

type ratesResponse struct {
	Result          string                 `json:"result"`
	BaseCode        string                 `json:"base_code"`
	ConversionRates map[string]json.Number `json:"conversion_rates"`
}

type errorResponse struct {
	Result    string `json:"result"`
	ErrorType string `json:"error-type"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.ErrorType != "" {
		return &ProviderError{StatusCode: status, Detail: apiErr.ErrorType}
	}
	if len(payload) > 0 {
		return &ProviderError{StatusCode: status, Detail: strings.TrimSpace(string(payload))}
	}
	return &ProviderError{StatusCode: status}
}

var _ RateProvider = (*Client)(nil)
