package actions

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/homeassistant"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

type callRecorder struct {
	mu     sync.Mutex
	paths  []string
	bodies map[string]string
}

func (c *callRecorder) record(path, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	if c.bodies == nil {
		c.bodies = make(map[string]string)
	}
	c.bodies[path] = body
}

func (c *callRecorder) body(path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[path]
}

func (c *callRecorder) services() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.paths {
		if strings.HasPrefix(p, "/api/services/") {
			out = append(out, strings.TrimPrefix(p, "/api/services/"))
		}
	}
	return out
}

func testExecutor(t *testing.T, cfg *config.Config) (*Executor, *callRecorder) {
	t.Helper()
	calls := &callRecorder{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls.record(r.URL.Path, string(body))
		if strings.HasSuffix(r.URL.Path, "clip.mp4") {
			w.Write(bytes.Repeat([]byte{'c'}, 2048))
		}
	}))
	t.Cleanup(srv.Close)

	cfg.HubURL = srv.URL
	cfg.HubToken = "hub-token"
	nvr := frigate.NewClient(srv.URL)
	hub := homeassistant.NewClient(srv.URL, "hub-token")
	return NewExecutor(func() *config.Config { return cfg }, nvr, hub, t.TempDir()), calls
}

func noQuietConfig() *config.Config {
	cfg := config.Default()
	cfg.QuietHoursStart = 0
	cfg.QuietHoursEnd = 0
	cfg.CameraZoneLights = map[string][]string{"front_door": {"light.porch"}}
	cfg.SpeakerEntities = []string{"media_player.kitchen"}
	cfg.AlarmEntity = "switch.siren"
	return cfg
}

func quietNowConfig() *config.Config {
	cfg := noQuietConfig()
	h := time.Now().Hour()
	cfg.QuietHoursStart = h
	cfg.QuietHoursEnd = (h + 1) % 24
	return cfg
}

func decision(level vision.RiskLevel, action vision.Action) *vision.Decision {
	return &vision.Decision{RiskLevel: level, Action: action, EventType: vision.TypeUnknownPerson}
}

func TestExecuteNotifyOnlyMakesNoCalls(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	res := e.Execute(context.Background(), "evt-1", "front_door",
		decision(vision.RiskLow, vision.ActionNotifyOnly), policy.MediaFor(vision.RiskLow), "tts")

	assert.Empty(t, calls.services())
	assert.Empty(t, res.ClipPath)
}

func TestExecuteLowRiskForcesNotifyOnly(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	e.Execute(context.Background(), "evt-1", "front_door",
		decision(vision.RiskLow, vision.ActionAlarm), policy.MediaFor(vision.RiskLow), "tts")

	assert.Empty(t, calls.services())
}

func TestExecuteSaveClipRetainsAndFetches(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	res := e.Execute(context.Background(), "evt-2", "front_door",
		decision(vision.RiskMedium, vision.ActionSaveClip), policy.MediaFor(vision.RiskMedium), "tts")

	assert.NotEmpty(t, res.ClipPath)
	assert.Contains(t, calls.paths, "/api/events/evt-2/retain")
	assert.Contains(t, calls.paths, "/api/events/evt-2/clip.mp4")
	assert.Empty(t, calls.services())
}

func TestExecuteLightAction(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	res := e.Execute(context.Background(), "evt-3", "front_door",
		decision(vision.RiskHigh, vision.ActionLight), policy.MediaFor(vision.RiskHigh), "tts")

	assert.True(t, res.LightsOn)
	assert.Contains(t, calls.services(), "light/turn_on")
}

func TestExecuteAlarmCascade(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	res := e.Execute(context.Background(), "evt-4", "front_door",
		decision(vision.RiskCritical, vision.ActionAlarm), policy.MediaFor(vision.RiskCritical), "intruder alert")

	assert.True(t, res.LightsOn)
	assert.True(t, res.Announced)
	assert.True(t, res.AlarmOn)
	services := calls.services()
	assert.Contains(t, services, "light/turn_on")
	assert.Contains(t, services, "media_player/play_media")
	assert.Contains(t, services, "switch/turn_on")
}

func TestExecuteSpeakerActionIsSpeakerOnly(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	res := e.Execute(context.Background(), "evt-9", "front_door",
		decision(vision.RiskHigh, vision.ActionSpeaker), policy.MediaFor(vision.RiskHigh), "person at the door")

	assert.True(t, res.Announced)
	assert.False(t, res.LightsOn)
	assert.Contains(t, calls.services(), "media_player/play_media")
	assert.NotContains(t, calls.services(), "light/turn_on")
}

func TestExecuteAnnouncePlaysTTSOnSpeakers(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	e.Execute(context.Background(), "evt-10", "front_door",
		decision(vision.RiskHigh, vision.ActionSpeaker), policy.MediaFor(vision.RiskHigh), "person at the door")

	body := calls.body("/api/services/media_player/play_media")
	assert.Contains(t, body, `"entity_id":"media_player.kitchen"`)
	assert.Contains(t, body, `"media_content_id":"person at the door"`)
	assert.Contains(t, body, `"media_content_type":"tts"`)
}

func TestExecuteQuietHoursSkipsSpeaker(t *testing.T) {
	e, calls := testExecutor(t, quietNowConfig())
	res := e.Execute(context.Background(), "evt-5", "front_door",
		decision(vision.RiskHigh, vision.ActionSpeaker), policy.MediaFor(vision.RiskHigh), "tts")

	assert.True(t, res.QuietSkipped)
	assert.False(t, res.Announced)
	assert.Empty(t, calls.services())
}

func TestExecuteCriticalOverridesQuietHours(t *testing.T) {
	e, calls := testExecutor(t, quietNowConfig())
	res := e.Execute(context.Background(), "evt-6", "front_door",
		decision(vision.RiskCritical, vision.ActionAlarm), policy.MediaFor(vision.RiskCritical), "tts")

	assert.True(t, res.Announced)
	assert.True(t, res.AlarmOn)
	assert.Contains(t, calls.services(), "switch/turn_on")
}

func TestExecuteUnknownActionDowngrades(t *testing.T) {
	e, calls := testExecutor(t, noQuietConfig())
	d := &vision.Decision{RiskLevel: vision.RiskHigh, Action: vision.Action("call_swat")}
	e.Execute(context.Background(), "evt-7", "front_door", d, policy.Media{Snapshot: true}, "tts")
	assert.Empty(t, calls.services())
}

func TestExecuteHubDownDoesNotBlock(t *testing.T) {
	cfg := noQuietConfig()
	downHub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer downHub.Close()

	nvrCalls := &callRecorder{}
	nvrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nvrCalls.record(r.URL.Path, "")
		if strings.HasSuffix(r.URL.Path, "clip.mp4") {
			w.Write(bytes.Repeat([]byte{'c'}, 2048))
		}
	}))
	defer nvrSrv.Close()

	e := NewExecutor(func() *config.Config { return cfg },
		frigate.NewClient(nvrSrv.URL),
		homeassistant.NewClient(downHub.URL, "token"),
		t.TempDir())

	res := e.Execute(context.Background(), "evt-8", "front_door",
		decision(vision.RiskHigh, vision.ActionLight), policy.MediaFor(vision.RiskHigh), "tts")

	require.False(t, res.LightsOn)
	assert.NotEmpty(t, res.ClipPath, "media capture proceeds despite hub failure")
}
