// Package boxtalapi is a small client for the shipping platform REST API.
package boxtalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/models"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.boxtal.com"

const moduleConfigPath = "/v2/sellershop/module/config"

// Credentials authenticate calls made on behalf of a paired shop.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// APIError is returned for any non-2xx answer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the platform API. Calls are synchronous and not retried.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client rooted at baseURL. A nil httpClient gets a
// default one with a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetModuleConfig fetches the locale-specific endpoint URLs used by the setup wizard.
func (c *Client) GetModuleConfig(ctx context.Context, locale string) (*models.ModuleConfig, error) {
	q := url.Values{}
	q.Set("locale", locale)
	body, err := c.do(ctx, http.MethodGet, c.baseURL+moduleConfigPath+"?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	var cfg models.ModuleConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("decode module config: %w", err)
	}
	return &cfg, nil
}

// ValidatePairingUpdate forwards the admin's confirmation input to the
// callback URL the platform supplied when the re-pairing started.
func (c *Client) ValidatePairingUpdate(ctx context.Context, callbackURL string, creds Credentials, input string) error {
	payload, err := json.Marshal(map[string]string{"input": input})
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, callbackURL, payload, &creds)
	return err
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, creds *Credentials) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		req.SetBasicAuth(creds.AccessKey, creds.SecretKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
