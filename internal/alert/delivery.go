package alert

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

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/metrics"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

// deliveryPreamble tells the relay agent to forward the body untouched
// instead of rephrasing it.
const deliveryPreamble = "DELIVERY MODE: forward the following message to the recipient verbatim. Do not summarize, rephrase or add commentary.\n\n"

// Deliverer posts formatted alerts to the chat gateway's agent webhook. Only
// medium and above reach chat; low-risk events stay on the bus.
type Deliverer struct {
	cfg  func() *config.Config
	http *http.Client
}

func NewDeliverer(cfg func() *config.Config) *Deliverer {
	return &Deliverer{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Message        string `json:"message"`
	Deliver        bool   `json:"deliver"`
	Channel        string `json:"channel"`
	To             string `json:"to"`
	Name           string `json:"name"`
	SessionKey     string `json:"sessionKey"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// ShouldDeliver applies the chat filters for a final risk level.
func (d *Deliverer) ShouldDeliver(level vision.RiskLevel) bool {
	cfg := d.cfg()
	if !cfg.ChatEnabled || cfg.GatewayWebhook == "" {
		return false
	}
	return level.Rank() >= vision.RiskMedium.Rank()
}

// Deliver sends the alert body to every configured recipient. Per-recipient
// failures are logged; one recipient failing never blocks the others.
func (d *Deliverer) Deliver(ctx context.Context, camera, eventID, body string) error {
	cfg := d.cfg()
	sessionKey := fmt.Sprintf("frigate:%s:%s", camera, eventID)

	var lastErr error
	for _, to := range cfg.Recipients {
		env := envelope{
			Message:        deliveryPreamble + body,
			Deliver:        true,
			Channel:        cfg.ChatChannel,
			To:             to,
			Name:           cfg.DeliveryAgentName,
			SessionKey:     sessionKey,
			TimeoutSeconds: 60,
		}
		if err := d.post(ctx, cfg, env); err != nil {
			metrics.Deliveries.WithLabelValues("error").Inc()
			log.Printf("[ERROR] Delivery: send to %s failed for event %s: %v", to, eventID, err)
			lastErr = err
			continue
		}
		metrics.Deliveries.WithLabelValues("ok").Inc()
		log.Printf("[INFO] Delivery: alert for event %s sent to %s", eventID, to)
	}
	return lastErr
}

func (d *Deliverer) post(ctx context.Context, cfg *config.Config, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	url := strings.TrimRight(cfg.GatewayWebhook, "/") + "/hooks/agent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.GatewayToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.GatewayToken)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("POST %s returned %d", url, resp.StatusCode)
	}
}
