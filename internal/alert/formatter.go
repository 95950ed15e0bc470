package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

const placeholder = "n/a"

var severityGlyph = map[vision.RiskLevel]string{
	vision.RiskLow:      "🟢",
	vision.RiskMedium:   "🟡",
	vision.RiskHigh:     "🟠",
	vision.RiskCritical: "🔴",
}

// Input is everything the formatter needs for one alert.
type Input struct {
	Camera    string
	EventID   string
	Decision  *vision.Decision
	Context   policy.Context
	Media     policy.Media
	ClipPath  string
	Analysis  string
	Timestamp time.Time
}

// Format renders the fixed-section chat body. Every section is always
// present; missing data shows a placeholder so the layout never shifts.
func Format(in Input) string {
	d := in.Decision
	var b strings.Builder

	glyph := severityGlyph[d.RiskLevel]
	fmt.Fprintf(&b, "%s SECURITY ALERT — %s RISK\n\n", glyph, strings.ToUpper(string(d.RiskLevel)))

	fmt.Fprintf(&b, "EVENT\n%s camera (%s zone), %s\n\n",
		in.Camera, orPlaceholder(in.Context.Zone), in.Timestamp.Local().Format("Mon Jan 2 15:04:05"))

	fmt.Fprintf(&b, "SUBJECT\n%s person — %s\n\n",
		orPlaceholder(d.SubjectIdentity), orPlaceholder(d.SubjectDescription))

	fmt.Fprintf(&b, "BEHAVIOR\n%s\n\n", orPlaceholder(d.Behavior))

	fmt.Fprintf(&b, "RISK\n%s (score %d, confidence %.0f%%)\nReason: %s\n\n",
		strings.ToUpper(string(d.RiskLevel)), d.RiskScore, d.RiskConfidence*100, orPlaceholder(d.RiskReason))

	fmt.Fprintf(&b, "CONTEXT\nHome mode: %s | Known faces: %s | Time of day: %s\n\n",
		orPlaceholder(in.Context.HomeMode), yesNo(in.Context.KnownFaces), orPlaceholder(in.Context.TimeOfDay))

	fmt.Fprintf(&b, "ACTION\n%s\n\n", actionLine(d.Action))

	fmt.Fprintf(&b, "MEDIA\n%s\n\n", mediaLine(in.Media, in.ClipPath))

	fmt.Fprintf(&b, "ESCALATION\n%s", escalationLine(d.RiskLevel))

	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func actionLine(a vision.Action) string {
	switch a {
	case vision.ActionSaveClip:
		return "Notification sent, clip saved"
	case vision.ActionLight:
		return "Notification sent, zone lights activated"
	case vision.ActionSpeaker:
		return "Notification sent, speaker announcement made"
	case vision.ActionAlarm:
		return "Notification sent, ALARM triggered with lights and speaker"
	default:
		return "Notification only"
	}
}

func mediaLine(m policy.Media, clipPath string) string {
	parts := []string{"snapshot"}
	if m.Clip {
		clip := fmt.Sprintf("%ds clip", m.ClipSeconds)
		if clipPath == "" {
			clip += " (pending)"
		}
		parts = append(parts, clip)
	}
	if m.Monitoring {
		parts = append(parts, "continued monitoring")
	}
	return strings.Join(parts, ", ")
}

func escalationLine(band vision.RiskLevel) string {
	switch band {
	case vision.RiskLow:
		return "Upgrades to MEDIUM if repeat detections occur within 10 minutes."
	case vision.RiskMedium:
		return "Upgrades to HIGH if subject remains on the property >60s."
	case vision.RiskHigh:
		return "Upgrades to CRITICAL on any entry attempt or if subject approaches within reach of a door or window."
	default:
		return "Maximum severity. Verify the property and contact authorities if the situation is confirmed."
	}
}
