package alert

import (
	"fmt"
	"strings"

	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

var severityPhrase = map[vision.RiskLevel]string{
	vision.RiskLow:      "Notice",
	vision.RiskMedium:   "Attention",
	vision.RiskHigh:     "Security alert",
	vision.RiskCritical: "Critical security alert",
}

// Speech renders the short spoken announcement, at most two sentences.
func Speech(camera string, d *vision.Decision, ctx policy.Context) string {
	subject := "a person"
	if d.SubjectIdentity == "known" {
		subject = "a known person"
	} else if d.EventType == vision.TypeDelivery {
		subject = "a delivery person"
	}

	where := camera
	if ctx.Zone != "" {
		where = fmt.Sprintf("the %s (%s camera)", ctx.Zone, camera)
	}

	first := fmt.Sprintf("%s: %s detected at %s.", severityPhrase[d.RiskLevel], subject, where)

	var second string
	if behavior := truncate(d.Behavior, 120); behavior != "" {
		second = fmt.Sprintf("Observed %s.", strings.TrimRight(behavior, "."))
	} else if reason := truncate(d.RiskReason, 100); reason != "" {
		second = fmt.Sprintf("%s.", strings.TrimRight(reason, "."))
	}

	if second == "" {
		return first
	}
	return first + " " + second
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
