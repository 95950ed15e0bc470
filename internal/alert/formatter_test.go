package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

func sampleInput(level vision.RiskLevel) Input {
	return Input{
		Camera:  "front_door",
		EventID: "evt-1",
		Decision: &vision.Decision{
			RiskLevel:          level,
			RiskScore:          vision.BaselineScore(level),
			RiskConfidence:     0.8,
			RiskReason:         "unfamiliar person at night",
			EventType:          vision.TypeUnknownPerson,
			Action:             vision.DefaultActionFor(level),
			SubjectIdentity:    "unknown",
			SubjectDescription: "adult in dark clothing",
			Behavior:           "approaching the door",
		},
		Context: policy.Context{
			Zone:      "entry",
			TimeOfDay: "night",
			HomeMode:  "away",
		},
		Media:     policy.MediaFor(level),
		Timestamp: time.Date(2026, 8, 25, 2, 15, 0, 0, time.Local),
	}
}

func TestFormatSectionsAlwaysPresent(t *testing.T) {
	body := Format(sampleInput(vision.RiskHigh))
	for _, section := range []string{"EVENT", "SUBJECT", "BEHAVIOR", "RISK", "CONTEXT", "ACTION", "MEDIA", "ESCALATION"} {
		assert.Contains(t, body, section+"\n")
	}
}

func TestFormatSeverityGlyphs(t *testing.T) {
	assert.True(t, strings.HasPrefix(Format(sampleInput(vision.RiskLow)), "🟢"))
	assert.True(t, strings.HasPrefix(Format(sampleInput(vision.RiskMedium)), "🟡"))
	assert.True(t, strings.HasPrefix(Format(sampleInput(vision.RiskHigh)), "🟠"))
	assert.True(t, strings.HasPrefix(Format(sampleInput(vision.RiskCritical)), "🔴"))
}

func TestFormatPlaceholdersForMissingData(t *testing.T) {
	in := sampleInput(vision.RiskMedium)
	in.Decision.Behavior = ""
	in.Decision.SubjectDescription = ""
	in.Context.HomeMode = ""

	body := Format(in)
	assert.Contains(t, body, "n/a")
	assert.Contains(t, body, "BEHAVIOR\nn/a")
}

func TestFormatMediaLine(t *testing.T) {
	in := sampleInput(vision.RiskCritical)
	body := Format(in)
	assert.Contains(t, body, "60s clip")
	assert.Contains(t, body, "continued monitoring")
	assert.Contains(t, body, "(pending)")

	in.ClipPath = "/var/lib/frigate-bridge/ai-clips/evt-1.mp4"
	body = Format(in)
	assert.NotContains(t, body, "(pending)")
}

func TestFormatEscalationPerBand(t *testing.T) {
	assert.Contains(t, Format(sampleInput(vision.RiskMedium)), "Upgrades to HIGH")
	assert.Contains(t, Format(sampleInput(vision.RiskHigh)), "Upgrades to CRITICAL")
	assert.Contains(t, Format(sampleInput(vision.RiskCritical)), "Maximum severity")
}

func TestSpeechShortAndSeverityLed(t *testing.T) {
	in := sampleInput(vision.RiskCritical)
	speech := Speech(in.Camera, in.Decision, in.Context)

	assert.True(t, strings.HasPrefix(speech, "Critical security alert"))
	assert.Contains(t, speech, "front_door")
	assert.LessOrEqual(t, strings.Count(speech, "."), 2)
}

func TestSpeechFallsBackToReason(t *testing.T) {
	in := sampleInput(vision.RiskHigh)
	in.Decision.Behavior = ""
	speech := Speech(in.Camera, in.Decision, in.Context)
	assert.Contains(t, speech, "unfamiliar person at night")
}
