package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/homesentry/frigate-bridge/internal/metrics"
)

// Client wraps the Home Assistant REST API. State reads feed the analysis
// context; service calls carry out the response actions.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether the hub is set up at all. The bridge degrades to
// notify-only when it is not.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

type stateResponse struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// GetState reads an entity's current state string.
func (c *Client) GetState(ctx context.Context, entityID string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("hub not configured")
	}
	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}

	var out stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode state for %s: %w", entityID, err)
	}
	return out.State, nil
}

// CallService invokes a hub service, retrying once on failure. Actions are
// best-effort: the caller logs the returned error and keeps going.
func (c *Client) CallService(ctx context.Context, domain, service string, payload map[string]any) error {
	if !c.Configured() {
		return fmt.Errorf("hub not configured")
	}
	name := domain + "." + service

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Printf("[WARN] Hub: retrying %s after error: %v", name, lastErr)
		}
		if lastErr = c.callOnce(ctx, domain, service, payload); lastErr == nil {
			metrics.ActionCalls.WithLabelValues(name, "ok").Inc()
			return nil
		}
	}
	metrics.ActionCalls.WithLabelValues(name, "error").Inc()
	return fmt.Errorf("service %s: %w", name, lastErr)
}

func (c *Client) callOnce(ctx context.Context, domain, service string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s returned %d", url, resp.StatusCode)
	}
	return nil
}
