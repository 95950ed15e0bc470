package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

const confirmDowngradeReason = "confirmation downgrade"

// Confirmer runs the second-look pass for high and critical events: wait a
// few seconds, grab a fresh snapshot and re-ask the model. A downgrade on the
// second look tempers the alert; anything that goes wrong keeps the original.
type Confirmer struct {
	cfg         func() *config.Config
	states      *events.StateMap
	nvr         *frigate.Client
	vision      *vision.Client
	snapshotDir string
}

func NewConfirmer(cfg func() *config.Config, states *events.StateMap, nvr *frigate.Client, vc *vision.Client, snapshotDir string) *Confirmer {
	return &Confirmer{cfg: cfg, states: states, nvr: nvr, vision: vc, snapshotDir: snapshotDir}
}

// Confirm returns the decision to act on: either the original or a
// downgraded copy.
func (c *Confirmer) Confirm(ctx context.Context, evt *events.DetectionEvent, original *vision.Decision, pctx policy.Context) *vision.Decision {
	cfg := c.cfg()

	state := c.states.Get(evt.Camera)
	state.BeginConfirmation(evt.EventID)
	defer state.EndConfirmation(evt.EventID)

	deadline, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConfirmTimeoutSeconds)*time.Second)
	defer cancel()

	select {
	case <-time.After(time.Duration(cfg.ConfirmDelaySeconds) * time.Second):
	case <-deadline.Done():
		log.Printf("[WARN] Confirm: timed out waiting for event %s, keeping original", evt.EventID)
		return original
	}

	second, err := c.secondLook(deadline, evt, pctx)
	if err != nil {
		log.Printf("[WARN] Confirm: second look failed for event %s, keeping original: %v", evt.EventID, err)
		return original
	}

	drop := original.RiskLevel.Rank() - second.RiskLevel.Rank()
	switch {
	case second.EventType == vision.TypeKnownPerson:
		log.Printf("[INFO] Confirm: event %s identified as known person, downgrading to medium", evt.EventID)
		return downgraded(original, vision.RiskMedium, confirmDowngradeReason)
	case drop >= 2:
		log.Printf("[INFO] Confirm: event %s dropped %d bands on second look, downgrading to medium", evt.EventID, drop)
		return downgraded(original, vision.RiskMedium, confirmDowngradeReason)
	case drop == 1:
		// A single-band disagreement is the second look refining the call,
		// not reversing it; its own reason carries through.
		log.Printf("[INFO] Confirm: event %s dropped one band on second look, downgrading to %s", evt.EventID, second.RiskLevel)
		return downgraded(original, second.RiskLevel, second.RiskReason)
	default:
		log.Printf("[INFO] Confirm: event %s held at %s", evt.EventID, original.RiskLevel)
		return original
	}
}

func (c *Confirmer) secondLook(ctx context.Context, evt *events.DetectionEvent, pctx policy.Context) (*vision.Decision, error) {
	snapPath, err := c.nvr.FetchSnapshot(ctx, evt.EventID, c.snapshotDir, evt.EventID+"-confirm.jpg")
	if err != nil {
		return nil, err
	}

	prompt := vision.BuildPrompt(vision.PromptContext{
		Camera:       evt.Camera,
		Zone:         pctx.Zone,
		Notes:        pctx.Notes,
		LocalTime:    time.Now(),
		TimeOfDay:    pctx.TimeOfDay,
		HomeMode:     pctx.HomeMode,
		KnownFaces:   pctx.KnownFaces,
		MediaRelPath: "./ai-snapshots/" + evt.EventID + "-confirm.jpg",
	})

	analysis, err := c.vision.Analyze(ctx, snapPath, prompt)
	if err != nil {
		return nil, err
	}

	second := vision.ParseDecision(analysis)
	policy.Score(second, pctx)
	return second, nil
}

// downgraded copies the original decision at a lower band, with the score
// and action pulled down to match.
func downgraded(original *vision.Decision, band vision.RiskLevel, reason string) *vision.Decision {
	d := *original
	d.RiskLevel = band
	d.RiskScore = vision.BaselineScore(band)
	d.Action = vision.DefaultActionFor(band)
	d.RiskReason = reason
	return &d
}
