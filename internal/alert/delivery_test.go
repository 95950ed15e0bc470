package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

func deliveryConfig(webhook string) func() *config.Config {
	cfg := config.Default()
	cfg.GatewayWebhook = webhook
	cfg.GatewayToken = "gw-token"
	cfg.Recipients = []string{"+15551234567"}
	cfg.ChatChannel = "whatsapp"
	cfg.ChatEnabled = true
	return func() *config.Config { return cfg }
}

func TestShouldDeliverFilters(t *testing.T) {
	d := NewDeliverer(deliveryConfig("http://gateway.local"))

	assert.False(t, d.ShouldDeliver(vision.RiskLow))
	assert.True(t, d.ShouldDeliver(vision.RiskMedium))
	assert.True(t, d.ShouldDeliver(vision.RiskHigh))
	assert.True(t, d.ShouldDeliver(vision.RiskCritical))
}

func TestShouldDeliverDisabled(t *testing.T) {
	cfgFn := deliveryConfig("http://gateway.local")
	cfgFn().ChatEnabled = false
	d := NewDeliverer(cfgFn)
	assert.False(t, d.ShouldDeliver(vision.RiskCritical))
}

func TestDeliverEnvelope(t *testing.T) {
	var got envelope
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/hooks/agent", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDeliverer(deliveryConfig(srv.URL))
	err := d.Deliver(context.Background(), "front_door", "evt-9", "🟠 SECURITY ALERT")
	require.NoError(t, err)

	assert.Equal(t, "Bearer gw-token", auth)
	assert.True(t, got.Deliver)
	assert.Equal(t, "whatsapp", got.Channel)
	assert.Equal(t, "+15551234567", got.To)
	assert.Equal(t, "frigate:front_door:evt-9", got.SessionKey)
	assert.Contains(t, got.Message, "DELIVERY MODE")
	assert.Contains(t, got.Message, "🟠 SECURITY ALERT")
}

func TestDeliverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDeliverer(deliveryConfig(srv.URL))
	assert.Error(t, d.Deliver(context.Background(), "cam", "evt-1", "body"))
}
