package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrefixLine(t *testing.T) {
	analysis := `A person is standing near the front door holding a box.

JSON: {"risk": "low", "confidence": 0.8, "reason": "delivery in progress", "type": "delivery", "action": "notify_only", "behavior": "dropping off a package", "subject": {"identity": "unknown", "description": "courier in uniform"}}`

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.Equal(t, TypeDelivery, d.EventType)
	assert.Equal(t, 0.8, d.RiskConfidence)
	assert.Equal(t, "courier in uniform", d.SubjectDescription)
}

func TestParsePrefixNextLine(t *testing.T) {
	analysis := "Some prose.\nJSON:\n{\"risk\": \"medium\", \"confidence\": 0.6, \"reason\": \"x\", \"type\": \"unknown_person\"}"

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskMedium, d.RiskLevel)
	assert.Equal(t, TypeUnknownPerson, d.EventType)
}

func TestParseFencedBlock(t *testing.T) {
	analysis := "Here is my assessment:\n```json\n{\"risk\": \"high\", \"confidence\": 0.9, \"reason\": \"forcing the lock\", \"type\": \"unknown_person\", \"behavior\": \"forcing\"}\n```\nStay safe."

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskHigh, d.RiskLevel)
	assert.Equal(t, "forcing the lock", d.RiskReason)
}

func TestParseBalancedBraces(t *testing.T) {
	analysis := `The subject appears calm. {"risk": "low", "confidence": 0.7, "reason": "nothing unusual", "type": "other", "subject": {"identity": "unknown", "description": "adult"}} That is all.`

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.Equal(t, "adult", d.SubjectDescription)
}

func TestParseBalancedRespectsStrings(t *testing.T) {
	analysis := `{"risk": "medium", "confidence": 0.5, "reason": "holding a \"crowbar\" shaped object", "type": "unknown_person"}`

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Contains(t, d.RiskReason, "crowbar")
}

func TestParseEmbeddedFragment(t *testing.T) {
	// Unbalanced leading brace forces the regex strategy.
	analysis := `{ broken prose and then "risk": nothing... later the model emits {"risk": "high", "confidence": 0.8, "reason": "climbing the fence"} mid-sentence`

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskHigh, d.RiskLevel)
	assert.Equal(t, "climbing the fence", d.RiskReason)
}

func TestParseNestedShape(t *testing.T) {
	analysis := `JSON: {"risk": {"level": "critical", "confidence": 0.95, "reason": "breaking a window"}, "type": "unknown_person", "action": "notify_and_alarm", "behavior": "breaking glass", "subject": {"identity": "unknown", "description": "masked adult"}}`

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, RiskCritical, d.RiskLevel)
	assert.Equal(t, 0.95, d.RiskConfidence)
	assert.Equal(t, "breaking a window", d.RiskReason)
	assert.Equal(t, ActionAlarm, d.Action)
}

func TestParseFallbackOnProse(t *testing.T) {
	analysis := "A man is loitering near the garage, wearing a mask and looking into windows."

	d := ParseDecision(analysis)
	require.NotNil(t, d)
	assert.Equal(t, TypeLoitering, d.EventType)
	assert.Equal(t, RiskHigh, d.RiskLevel)
	assert.Contains(t, d.RiskReason, "fallback")
}

func TestParseFallbackDelivery(t *testing.T) {
	d := ParseDecision("Someone left a package on the porch and walked away.")
	require.NotNil(t, d)
	assert.Equal(t, TypeDelivery, d.EventType)
	assert.Equal(t, RiskMedium, d.RiskLevel)
}

func TestParseNeverNil(t *testing.T) {
	for _, analysis := range []string{"", "no structure at all", "{{{{", "JSON: not json"} {
		d := ParseDecision(analysis)
		require.NotNil(t, d, "analysis %q", analysis)
		assert.True(t, d.RiskLevel.Rank() >= 0)
	}
}

func TestStripDecisionBlock(t *testing.T) {
	analysis := "MEDIA: ./ai-snapshots/abc.jpg\nA person stands by the door.\nThey look around briefly.\nJSON: {\"risk\": \"low\"}"

	got := StripDecisionBlock(analysis)
	assert.NotContains(t, got, "JSON:")
	assert.NotContains(t, got, "ai-snapshots")
	assert.Contains(t, got, "A person stands by the door.")
	assert.Contains(t, got, "They look around briefly.")
}

func TestStripDecisionBlockFence(t *testing.T) {
	analysis := "Prose before.\n```json\n{\"risk\": \"low\"}\n```\nProse after."
	got := StripDecisionBlock(analysis)
	assert.NotContains(t, got, "risk")
	assert.Contains(t, got, "Prose before.")
	assert.Contains(t, got, "Prose after.")
}
