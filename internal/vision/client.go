package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/homesentry/frigate-bridge/internal/metrics"
)

// Endpoint is one vision model backend (an Ollama-compatible server).
type Endpoint struct {
	BaseURL string
	Model   string
}

func (e Endpoint) configured() bool { return e.BaseURL != "" && e.Model != "" }

// Client calls the vision model over the Ollama generate API, with an
// optional fallback endpoint tried when the primary fails.
type Client struct {
	primary  Endpoint
	fallback Endpoint
	timeout  time.Duration
	http     *http.Client
}

func NewClient(primary, fallback Endpoint, timeout time.Duration) *Client {
	return &Client{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		// Per-request deadlines come from the context; the transport-level
		// timeout is only a backstop.
		http: &http.Client{Timeout: timeout + 10*time.Second},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Analyze sends the snapshot and prompt to the model and returns the raw
// analysis text. The fallback endpoint is tried once when the primary fails.
func (c *Client) Analyze(ctx context.Context, imagePath, prompt string) (string, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read snapshot %s: %w", imagePath, err)
	}
	encoded := base64.StdEncoding.EncodeToString(img)

	// One deadline bounds the whole call; a slow primary eats into the
	// fallback's budget rather than doubling the phase.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for i, ep := range []Endpoint{c.primary, c.fallback} {
		if !ep.configured() {
			continue
		}
		role := "primary"
		if i == 1 {
			role = "fallback"
		}
		start := time.Now()
		text, err := c.generate(ctx, ep, encoded, prompt)
		metrics.VisionLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.VisionCalls.WithLabelValues(role, "error").Inc()
			log.Printf("[WARN] Vision: %s (%s) failed: %v", ep.BaseURL, ep.Model, err)
			lastErr = err
			continue
		}
		metrics.VisionCalls.WithLabelValues(role, "ok").Inc()
		return text, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no vision endpoint configured")
	}
	return "", fmt.Errorf("vision analysis failed: %w", lastErr)
}

func (c *Client) generate(ctx context.Context, ep Endpoint, imageB64, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  ep.Model,
		Prompt: prompt,
		Images: []string{imageB64},
		Stream: false,
		Options: generateOptions{
			NumPredict:  350,
			Temperature: 0.1,
		},
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(ep.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("POST %s returned %d", url, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("empty model response from %s", ep.BaseURL)
	}
	return out.Response, nil
}

// Ping checks that an endpoint is reachable. Used by the status API.
func (c *Client) Ping(ctx context.Context) error {
	ep := c.primary
	if !ep.configured() {
		ep = c.fallback
	}
	if !ep.configured() {
		return fmt.Errorf("no vision endpoint configured")
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := strings.TrimRight(ep.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}
	return nil
}
