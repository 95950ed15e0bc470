package frigate

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// minMediaBytes is the smallest payload accepted as a real image or clip.
// The NVR serves tiny placeholder bodies while an event is still finalizing.
const minMediaBytes = 1024

// Client talks to the NVR's read-only event media API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchSnapshot downloads the event snapshot into destDir as {eventID}.jpg,
// falling back to the thumbnail when the snapshot is missing or too small.
// The optional filename overrides the default name (used by the second
// confirmation snapshot).
func (c *Client) FetchSnapshot(ctx context.Context, eventID, destDir, filename string) (string, error) {
	if filename == "" {
		filename = eventID + ".jpg"
	}
	dest := filepath.Join(destDir, filename)

	var lastErr error
	for _, endpoint := range []string{"snapshot.jpg", "thumbnail.jpg"} {
		url := fmt.Sprintf("%s/api/events/%s/%s", c.baseURL, eventID, endpoint)
		body, err := c.get(ctx, url)
		if err != nil {
			lastErr = err
			log.Printf("[WARN] Frigate: fetch %s failed: %v", url, err)
			continue
		}
		if len(body) <= minMediaBytes {
			lastErr = fmt.Errorf("%s returned %d bytes", endpoint, len(body))
			continue
		}
		if err := os.WriteFile(dest, body, 0640); err != nil {
			return "", fmt.Errorf("write snapshot %s: %w", dest, err)
		}
		log.Printf("[INFO] Frigate: saved %s (%d bytes) via %s", dest, len(body), endpoint)
		return dest, nil
	}
	return "", fmt.Errorf("snapshot unavailable for event %s: %w", eventID, lastErr)
}

// Retain marks the event clip for retention on the NVR.
func (c *Client) Retain(ctx context.Context, eventID string) error {
	url := fmt.Sprintf("%s/api/events/%s/retain", c.baseURL, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("retain %s: %w", eventID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("retain %s returned %d", eventID, resp.StatusCode)
	}
	return nil
}

// FetchClip downloads the event clip into destDir as {eventID}.mp4. Clips can
// lag the event by several seconds, so callers treat failure as non-fatal.
func (c *Client) FetchClip(ctx context.Context, eventID, destDir string) (string, error) {
	url := fmt.Sprintf("%s/api/events/%s/clip.mp4", c.baseURL, eventID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	clipClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := clipClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("clip download %s: %w", eventID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("clip download %s returned %d", eventID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("clip download %s: %w", eventID, err)
	}
	if len(body) <= minMediaBytes {
		return "", fmt.Errorf("clip download %s returned %d bytes", eventID, len(body))
	}

	dest := filepath.Join(destDir, eventID+".mp4")
	if err := os.WriteFile(dest, body, 0640); err != nil {
		return "", fmt.Errorf("write clip %s: %w", dest, err)
	}
	log.Printf("[INFO] Frigate: saved clip %s (%d bytes)", dest, len(body))
	return dest, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
