package registry

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

	"github.com/tidwall/gjson"
)

// HeaderAPIKey authenticates registry API calls when a key is configured.
const HeaderAPIKey = "X-API-Key"

// Client is a Registry backed by another gateway's /v1/configs API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Registry = (*Client)(nil)

// NewClient returns a client for the gateway at baseURL. A zero timeout means 10s.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchByName returns the document stored under name.
func (c *Client) FetchByName(ctx context.Context, name string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/v1/configs/by-name/"+url.PathEscape(name), nil)
}

// ResolveIdentifier returns the id for name.
func (c *Client) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/configs/by-name/"+url.PathEscape(name)+"/id", nil)
	if err != nil {
		return "", err
	}
	return idFrom(body)
}

// FetchByID returns the document with id.
func (c *Client) FetchByID(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/v1/configs/"+url.PathEscape(id), nil)
}

// Save creates or replaces a document.
func (c *Client) Save(ctx context.Context, data []byte, existingID string) (string, error) {
	if _, err := DocumentName(data); err != nil {
		return "", err
	}
	path := "/v1/configs"
	if existingID != "" {
		path += "?id=" + url.QueryEscape(existingID)
	}
	body, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return "", err
	}
	return idFrom(body)
}

// Delete removes the configuration with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/configs/"+url.PathEscape(id), nil)
	return err
}

// List returns every configuration.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/configs", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Configs []Entry `json:"configs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode list: %v", ErrUnavailable, err)
	}
	return out.Configs, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	msg := gjson.GetBytes(data, "error.message").String()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, msg)
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return nil, fmt.Errorf("%w: %s %s: %d %s", ErrUnavailable, method, path, resp.StatusCode, msg)
	}
}

func idFrom(body []byte) (string, error) {
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", fmt.Errorf("%w: response has no id", ErrUnavailable)
	}
	return id, nil
}
