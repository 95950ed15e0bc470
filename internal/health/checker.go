package health

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Status of one upstream dependency.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Check is the snapshot of one dependency's last probe.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	LatencyMS int       `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Probe tests one dependency and returns an error when it is unhealthy.
type Probe func(ctx context.Context) error

// Checker probes the bridge's upstreams (NVR, vision model, smart-home hub,
// bus) on a fixed interval and caches the results for the status API.
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	results map[string]Check
}

func NewChecker() *Checker {
	return &Checker{
		probes:  make(map[string]Probe),
		results: make(map[string]Check),
	}
}

// Register adds a named dependency probe. Must be called before Run.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
	c.results[name] = Check{Name: name, Status: StatusUnknown}
}

// Run probes everything immediately and then on every interval tick, until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.checkAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAll(ctx)
		}
	}
}

func (c *Checker) checkAll(ctx context.Context) {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	c.mu.RUnlock()

	for _, name := range names {
		c.checkOne(ctx, name)
	}
}

func (c *Checker) checkOne(ctx context.Context, name string) {
	c.mu.RLock()
	probe := c.probes[name]
	c.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	err := probe(probeCtx)
	result := Check{
		Name:      name,
		Status:    StatusOnline,
		LatencyMS: int(time.Since(start).Milliseconds()),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Status = StatusOffline
		result.Detail = err.Error()
		log.Printf("[WARN] Health: %s offline: %v", name, err)
	}

	c.mu.Lock()
	c.results[name] = result
	c.mu.Unlock()
}

// Results returns the latest check per dependency.
func (c *Checker) Results() []Check {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Check, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	return out
}

// Healthy reports whether every registered dependency is online.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.results {
		if r.Status != StatusOnline {
			return false
		}
	}
	return true
}

// HTTPProbe builds a probe that GETs a URL and requires a 2xx response.
func HTTPProbe(url string) Probe {
	client := &http.Client{Timeout: 8 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/"), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
		}
		return nil
	}
}
