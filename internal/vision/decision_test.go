package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandForScoreBoundaries(t *testing.T) {
	assert.Equal(t, RiskLow, BandForScore(0))
	assert.Equal(t, RiskLow, BandForScore(2))
	assert.Equal(t, RiskMedium, BandForScore(3))
	assert.Equal(t, RiskMedium, BandForScore(4))
	assert.Equal(t, RiskHigh, BandForScore(5))
	assert.Equal(t, RiskHigh, BandForScore(6))
	assert.Equal(t, RiskCritical, BandForScore(7))
	assert.Equal(t, RiskCritical, BandForScore(13))
}

func TestBaselineScore(t *testing.T) {
	assert.Equal(t, 1, BaselineScore(RiskLow))
	assert.Equal(t, 3, BaselineScore(RiskMedium))
	assert.Equal(t, 5, BaselineScore(RiskHigh))
	assert.Equal(t, 7, BaselineScore(RiskCritical))
	assert.Equal(t, 1, BaselineScore(RiskLevel("garbage")))
}

func TestSanitizeCoercesEnums(t *testing.T) {
	d := &Decision{
		RiskLevel: "SEVERE",
		EventType: "Burglar",
		Action:    "call_police",
	}
	Sanitize(d)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.Equal(t, TypeOther, d.EventType)
	assert.Equal(t, ActionNotifyOnly, d.Action)
	assert.Equal(t, "unknown", d.SubjectIdentity)
	assert.Equal(t, "AI analysis", d.RiskReason)
}

func TestSanitizePercentConfidence(t *testing.T) {
	d := &Decision{RiskLevel: "high", RiskConfidence: 85}
	Sanitize(d)
	assert.InDelta(t, 0.85, d.RiskConfidence, 0.001)

	d = &Decision{RiskLevel: "high", RiskConfidence: -2}
	Sanitize(d)
	assert.Equal(t, 0.0, d.RiskConfidence)
}

func TestSanitizeKnownPersonIdentity(t *testing.T) {
	d := &Decision{RiskLevel: "low", EventType: "known_person"}
	Sanitize(d)
	assert.Equal(t, "known", d.SubjectIdentity)
}

func TestDefaultActionFor(t *testing.T) {
	assert.Equal(t, ActionNotifyOnly, DefaultActionFor(RiskLow))
	assert.Equal(t, ActionSaveClip, DefaultActionFor(RiskMedium))
	assert.Equal(t, ActionLight, DefaultActionFor(RiskHigh))
	assert.Equal(t, ActionAlarm, DefaultActionFor(RiskCritical))
}
