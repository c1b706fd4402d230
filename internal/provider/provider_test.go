package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchPivotRatesMissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, PivotCurrency: "USD"}, noopLogger())
	_, err := c.FetchPivotRates(context.Background())
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("missing key must fail before any network call, saw %d calls", calls)
	}
}

func TestFetchPivotRatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "error", "error-type": "invalid-key"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", PivotCurrency: "USD", Timeout: time.Second}, noopLogger())
	_, err := c.FetchPivotRates(context.Background())
	if err == nil {
		t.Fatal("HTTP 403 must return an error")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if provErr.StatusCode != http.StatusForbidden || provErr.Detail != "invalid-key" {
		t.Fatalf("unexpected provider error: %+v", provErr)
	}
}

func TestFetchPivotRatesMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", PivotCurrency: "USD", Timeout: time.Second}, noopLogger())
	if _, err := c.FetchPivotRates(context.Background()); err == nil {
		t.Fatal("malformed payload must return an error")
	}
}

func TestFetchPivotRatesSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":    "success",
			"base_code": "USD",
			"conversion_rates": map[string]float64{
				"USD": 1,
				"EUR": 0.9,
				"KZT": 450.25,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:       srv.URL,
		APIKey:        "secret",
		PivotCurrency: "USD",
		Timeout:       time.Second,
		UserAgent:     "test",
	}, noopLogger())

	rates, err := c.FetchPivotRates(context.Background())
	if err != nil {
		t.Fatalf("successful response must not error: %v", err)
	}
	if gotPath != "/secret/latest/USD" {
		t.Fatalf("unexpected request path %s", gotPath)
	}
	if len(rates) != 3 {
		t.Fatalf("expected 3 rates, got %d", len(rates))
	}
	if rates["EUR"].String() != "0.9" {
		t.Fatalf("expected EUR 0.9, got %s", rates["EUR"].String())
	}
}
