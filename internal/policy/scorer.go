package policy

import (
	"fmt"
	"strings"

	"github.com/homesentry/frigate-bridge/internal/vision"
)

// Behavior keywords. A strong match adds 3, otherwise a soft match adds 2;
// the bucket never contributes more than 3. Calm terms subtract 1 only when
// nothing suspicious matched alongside them.
var (
	strongBehavior = []string{"loitering", "concealment", "tools", "forcing", "climbing", "breaking", "lurking"}
	softBehavior   = []string{"reaching", "looking around", "crouching", "hiding", "hood up", "trying"}
	calmBehavior   = []string{"walking", "standing", "passing"}
)

// Zones that sit on the approach to the house score higher.
var sensitiveZones = map[string]bool{
	"entry": true, "garage": true, "terrace": true, "door": true,
}

// Score re-scores the model's proposed risk deterministically. The model's
// level sets the baseline; everything after that is rule-driven, so the same
// decision and context always produce the same score. The decision is
// mutated in place: RiskScore, RiskLevel and Action are overwritten.
func Score(d *vision.Decision, ctx Context) {
	score := vision.BaselineScore(d.RiskLevel)
	var reasons []string

	if d.EventType == vision.TypeUnknownPerson {
		score += 2
		reasons = append(reasons, "unknown person +2")
	}
	switch ctx.TimeOfDay {
	case "evening":
		score++
		reasons = append(reasons, "evening +1")
	case "night":
		score += 2
		reasons = append(reasons, "night +2")
	}
	if sensitiveZones[ctx.Zone] {
		score++
		reasons = append(reasons, "zone +1")
	}
	switch ctx.HomeMode {
	case "away":
		score += 3
		reasons = append(reasons, "away +3")
	case "sleep":
		score += 2
		reasons = append(reasons, "sleep +2")
	}

	behavior := strings.ToLower(d.Behavior)
	strong := matchesAny(behavior, strongBehavior)
	soft := matchesAny(behavior, softBehavior)
	switch {
	case strong:
		score += 3
		reasons = append(reasons, "behavior +3")
	case soft:
		score += 2
		reasons = append(reasons, "behavior +2")
	case matchesAny(behavior, calmBehavior):
		score--
		reasons = append(reasons, "calm -1")
	}

	if ctx.KnownFaces {
		score -= 4
		reasons = append(reasons, "known faces -4")
	}
	if d.EventType == vision.TypeDelivery {
		score -= 2
		reasons = append(reasons, "delivery -2")
	}

	if score < 0 {
		score = 0
	}

	band := vision.BandForScore(score)
	action := vision.DefaultActionFor(band)
	// The model may ask for a stronger response than the band default, but
	// only once the band itself clears medium.
	if band.Rank() >= vision.RiskMedium.Rank() && d.Action.Rank() > action.Rank() {
		action = d.Action
	}

	d.RiskScore = score
	d.RiskLevel = band
	d.Action = action
	if len(reasons) > 0 {
		d.RiskReason = fmt.Sprintf("%s (%s)", d.RiskReason, strings.Join(reasons, ", "))
	}
}

func matchesAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
