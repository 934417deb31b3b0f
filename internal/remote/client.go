package remote

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

	"stocktake/internal/config"
	"stocktake/internal/models"

	"github.com/rs/zerolog"
)

// ErrItemNotFound reports that the warehouse service does not know a code.
var ErrItemNotFound = fmt.Errorf("item not found")

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(cfg config.RemoteConfig, logger *zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "remote").Logger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// conflictBody is the structured rejection shape agreed with the service: a
// 409 alone is not enough, the body must say so explicitly.
type conflictBody struct {
	Conflict bool   `json:"conflict"`
	Reason   string `json:"reason"`
}

// Submit delivers one mutation. The payload is forwarded as the request body
// without inspection.
func (c *Client) Submit(ctx context.Context, kind, payload string) (*SubmitResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/mutations/%s", c.baseURL, url.PathEscape(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return &SubmitResult{Accepted: true}, nil
	case resp.StatusCode == http.StatusConflict:
		var body conflictBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Conflict {
			// 409 without the structured body counts as an ordinary failure.
			return nil, fmt.Errorf("submit %s: unexpected conflict response", kind)
		}
		return &SubmitResult{Conflict: true, Reason: body.Reason}, nil
	default:
		return nil, fmt.Errorf("submit %s: status %d: %s", kind, resp.StatusCode, readError(resp.Body))
	}
}

// FetchChanges pulls reference records changed since the given time, or the
// full set when since is nil.
func (c *Client) FetchChanges(ctx context.Context, since *time.Time) ([]models.Item, error) {
	endpoint := c.baseURL + "/api/v1/items/changes"
	if since != nil {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build changes request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch changes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch changes: status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var body struct {
		Items []models.Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	return body.Items, nil
}

// GetItem resolves one item code, typically from a barcode scan.
func (c *Client) GetItem(ctx context.Context, code string) (*models.Item, error) {
	endpoint := fmt.Sprintf("%s/api/v1/items/%s", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build item request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get item %s: status %d: %s", code, resp.StatusCode, readError(resp.Body))
	}

	var item models.Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", code, err)
	}
	return &item, nil
}

// Healthz probes the service; any 2xx counts as reachable.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

func readError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
