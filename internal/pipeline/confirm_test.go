package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

func confirmConfig() *config.Config {
	cfg := config.Default()
	cfg.ConfirmDelaySeconds = 0
	cfg.ConfirmTimeoutSeconds = 10
	return cfg
}

// fakeNVR serves oversized snapshot bodies for any event.
func fakeNVR(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{'j'}, 4096))
	}))
}

// fakeVision answers the generate API with a fixed decision line.
func fakeVision(t *testing.T, decisionJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"response": fmt.Sprintf("A second look at the scene.\nJSON: %s", decisionJSON),
		})
	}))
}

func testConfirmer(t *testing.T, cfg *config.Config, nvrURL, visionURL string) *Confirmer {
	t.Helper()
	nvr := frigate.NewClient(nvrURL)
	vc := vision.NewClient(
		vision.Endpoint{BaseURL: visionURL, Model: "test-model"},
		vision.Endpoint{},
		5*time.Second,
	)
	return NewConfirmer(func() *config.Config { return cfg }, events.NewStateMap(), nvr, vc, t.TempDir())
}

func highDecision() *vision.Decision {
	return &vision.Decision{
		RiskLevel:      vision.RiskHigh,
		RiskScore:      5,
		RiskConfidence: 0.9,
		RiskReason:     "unfamiliar person at the window",
		EventType:      vision.TypeUnknownPerson,
		Action:         vision.ActionLight,
	}
}

func TestConfirmKnownPersonDowngradesToMedium(t *testing.T) {
	nvr := fakeNVR(t)
	defer nvr.Close()
	vs := fakeVision(t, `{"risk": "high", "confidence": 0.9, "reason": "resident returning home", "type": "known_person"}`)
	defer vs.Close()

	c := testConfirmer(t, confirmConfig(), nvr.URL, vs.URL)
	evt := &events.DetectionEvent{EventID: "evt-1", Camera: "front_door"}

	got := c.Confirm(context.Background(), evt, highDecision(), policy.Context{TimeOfDay: "day", Zone: "entry"})

	assert.Equal(t, vision.RiskMedium, got.RiskLevel)
	assert.Equal(t, "confirmation downgrade", got.RiskReason)
	assert.Equal(t, vision.ActionSaveClip, got.Action)
}

func TestConfirmHoldsWhenSecondLookAgrees(t *testing.T) {
	nvr := fakeNVR(t)
	defer nvr.Close()
	// Scores to high again: baseline 5 + unknown 2 - nothing else... still >= original band.
	vs := fakeVision(t, `{"risk": "high", "confidence": 0.9, "reason": "still at the window", "type": "unknown_person"}`)
	defer vs.Close()

	c := testConfirmer(t, confirmConfig(), nvr.URL, vs.URL)
	evt := &events.DetectionEvent{EventID: "evt-2", Camera: "front_door"}
	original := highDecision()

	got := c.Confirm(context.Background(), evt, original, policy.Context{TimeOfDay: "day", Zone: "yard"})
	assert.Same(t, original, got)
}

func TestConfirmSingleBandDrop(t *testing.T) {
	nvr := fakeNVR(t)
	defer nvr.Close()
	// Scores to medium: baseline 3 + nothing.
	vs := fakeVision(t, `{"risk": "medium", "confidence": 0.6, "reason": "person leaving", "type": "other", "behavior": "checking the mailbox"}`)
	defer vs.Close()

	c := testConfirmer(t, confirmConfig(), nvr.URL, vs.URL)
	evt := &events.DetectionEvent{EventID: "evt-3", Camera: "front_door"}

	got := c.Confirm(context.Background(), evt, highDecision(), policy.Context{TimeOfDay: "day", Zone: "yard"})
	assert.Equal(t, vision.RiskMedium, got.RiskLevel)
	// A one-band drop keeps the second look's own reason; the downgrade
	// marker is reserved for the bigger reversals.
	assert.Equal(t, "person leaving", got.RiskReason)
}

func TestConfirmKeepsOriginalOnVisionFailure(t *testing.T) {
	nvr := fakeNVR(t)
	defer nvr.Close()
	vs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer vs.Close()

	c := testConfirmer(t, confirmConfig(), nvr.URL, vs.URL)
	evt := &events.DetectionEvent{EventID: "evt-4", Camera: "front_door"}
	original := highDecision()

	got := c.Confirm(context.Background(), evt, original, policy.Context{TimeOfDay: "day", Zone: "yard"})
	assert.Same(t, original, got)
}

func TestConfirmClearsPendingMarker(t *testing.T) {
	nvr := fakeNVR(t)
	defer nvr.Close()
	vs := fakeVision(t, `{"risk": "high", "confidence": 0.9, "reason": "x", "type": "unknown_person"}`)
	defer vs.Close()

	cfg := confirmConfig()
	states := events.NewStateMap()
	c := NewConfirmer(func() *config.Config { return cfg }, states,
		frigate.NewClient(nvr.URL),
		vision.NewClient(vision.Endpoint{BaseURL: vs.URL, Model: "m"}, vision.Endpoint{}, 5*time.Second),
		t.TempDir())

	evt := &events.DetectionEvent{EventID: "evt-5", Camera: "front_door"}
	c.Confirm(context.Background(), evt, highDecision(), policy.Context{})
	assert.Equal(t, 0, states.Get("front_door").PendingConfirmations())
}
