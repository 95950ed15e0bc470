package actions

import (
	"context"
	"log"
	"time"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/homeassistant"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

// Result reports what the executor actually did, for the final payload.
type Result struct {
	ClipPath     string
	LightsOn     bool
	Announced    bool
	AlarmOn      bool
	QuietSkipped bool
}

// Executor carries out the response for a scored event: NVR retention and
// clip capture per the media plan, then hub calls per the action. Every call
// is best-effort; a dead hub never blocks the alert itself.
type Executor struct {
	cfg     func() *config.Config
	nvr     *frigate.Client
	hub     *homeassistant.Client
	clipDir string
}

func NewExecutor(cfg func() *config.Config, nvr *frigate.Client, hub *homeassistant.Client, clipDir string) *Executor {
	return &Executor{cfg: cfg, nvr: nvr, hub: hub, clipDir: clipDir}
}

// Execute runs the media plan and the hub calls for one event. The action is
// assumed pre-validated by the scorer; anything off the allowlist downgrades
// to notify-only here as a final guard.
func (e *Executor) Execute(ctx context.Context, eventID, camera string, d *vision.Decision, media policy.Media, tts string) Result {
	cfg := e.cfg()
	var res Result

	action := d.Action
	if !action.Allowed() {
		log.Printf("[WARN] Executor: action %q not allowlisted for event %s, downgrading to notify_only", action, eventID)
		action = vision.ActionNotifyOnly
	}
	if d.RiskLevel == vision.RiskLow {
		action = vision.ActionNotifyOnly
	}

	if media.Clip {
		res.ClipPath = e.captureClip(ctx, eventID)
	}

	if action == vision.ActionNotifyOnly || action == vision.ActionSaveClip {
		return res
	}

	quiet := policy.InQuietHours(time.Now(), cfg)
	critical := d.RiskLevel == vision.RiskCritical

	// Lights belong to the light action and the alarm cascade; the speaker
	// action stays speaker-only.
	if action == vision.ActionLight || action == vision.ActionAlarm {
		res.LightsOn = e.turnOnLights(ctx, camera)
	}
	if action == vision.ActionSpeaker || action == vision.ActionAlarm {
		if quiet && !critical {
			res.QuietSkipped = true
			log.Printf("[INFO] Executor: quiet hours, skipping speaker for event %s", eventID)
		} else {
			res.Announced = e.announce(ctx, tts)
		}
	}
	if action == vision.ActionAlarm {
		if quiet && !critical {
			res.QuietSkipped = true
			log.Printf("[INFO] Executor: quiet hours, skipping alarm for event %s", eventID)
		} else {
			res.AlarmOn = e.soundAlarm(ctx)
		}
	}
	return res
}

// captureClip asks the NVR to retain the event and then tries to download the
// clip. Clips often lag the live event, so a failed fetch is only logged.
func (e *Executor) captureClip(ctx context.Context, eventID string) string {
	if err := e.nvr.Retain(ctx, eventID); err != nil {
		log.Printf("[WARN] Executor: retain failed for event %s: %v", eventID, err)
	}
	path, err := e.nvr.FetchClip(ctx, eventID, e.clipDir)
	if err != nil {
		log.Printf("[WARN] Executor: clip fetch failed for event %s: %v", eventID, err)
		return ""
	}
	return path
}

func (e *Executor) turnOnLights(ctx context.Context, camera string) bool {
	cfg := e.cfg()
	lights := cfg.LightsFor(camera)
	if len(lights) == 0 {
		return false
	}
	ok := false
	for _, entity := range lights {
		err := e.hub.CallService(ctx, "light", "turn_on", map[string]any{
			"entity_id":      entity,
			"brightness_pct": 100,
		})
		if err != nil {
			log.Printf("[ERROR] Executor: light.turn_on %s failed: %v", entity, err)
			continue
		}
		ok = true
	}
	return ok
}

func (e *Executor) announce(ctx context.Context, tts string) bool {
	cfg := e.cfg()
	if tts == "" || len(cfg.SpeakerEntities) == 0 {
		return false
	}
	ok := false
	for _, entity := range cfg.SpeakerEntities {
		err := e.hub.CallService(ctx, "media_player", "play_media", map[string]any{
			"entity_id":          entity,
			"media_content_id":   tts,
			"media_content_type": "tts",
		})
		if err != nil {
			log.Printf("[ERROR] Executor: tts announce on %s failed: %v", entity, err)
			continue
		}
		ok = true
	}
	return ok
}

func (e *Executor) soundAlarm(ctx context.Context) bool {
	cfg := e.cfg()
	if cfg.AlarmEntity == "" {
		return false
	}
	err := e.hub.CallService(ctx, "switch", "turn_on", map[string]any{
		"entity_id": cfg.AlarmEntity,
	})
	if err != nil {
		log.Printf("[ERROR] Executor: alarm %s failed: %v", cfg.AlarmEntity, err)
		return false
	}
	return true
}
