package platform

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atinyakov/BoxtalConnect/internal/envelope"
	"github.com/atinyakov/BoxtalConnect/internal/models"
)

const restPrefix = "/boxtal-connect/v1"

// Response is the status and body the shop answered with.
type Response struct {
	StatusCode int
	Body       string
}

// Client calls the shop REST endpoints with sealed bodies.
type Client struct {
	http    *http.Client
	baseURL string
	shopKey *rsa.PublicKey
}

// NewClient returns a Client for the shop at baseURL. shopKey is the public
// half of the shop envelope key.
func NewClient(httpClient *http.Client, baseURL string, shopKey *rsa.PublicKey) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), shopKey: shopKey}
}

// Pair sends PATCH /shop/pair. A non-empty PairCallbackURL starts a
// pairing update on an already paired shop.
func (c *Client) Pair(ctx context.Context, req models.PairRequest) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPatch, "/shop/pair", req)
}

// PushConfiguration sends the configuration document as is.
func (c *Client) PushConfiguration(ctx context.Context, doc []byte) (*Response, error) {
	return c.send(ctx, http.MethodPatch, "/shop/configuration", doc)
}

// DeleteConfiguration asks the shop to drop its configuration.
func (c *Client) DeleteConfiguration(ctx context.Context, accessKey string) (*Response, error) {
	return c.sendJSON(ctx, http.MethodDelete, "/shop/configuration", models.DeleteConfigurationRequest{AccessKey: accessKey})
}

func (c *Client) sendJSON(ctx context.Context, method, path string, v any) (*Response, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return c.send(ctx, method, path, plain)
}

func (c *Client) send(ctx context.Context, method, path string, plain []byte) (*Response, error) {
	body, err := envelope.Seal(c.shopKey, plain)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+restPrefix+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}, nil
}
