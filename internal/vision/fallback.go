package vision

import "strings"

// FallbackDecision derives a conservative decision from the analysis prose
// when no JSON could be extracted. The keyword tables intentionally skew
// toward under-alerting; a noisy model reply should not trip the siren.
func FallbackDecision(analysis string) *Decision {
	low := strings.ToLower(analysis)

	d := &Decision{
		RiskLevel:       RiskLow,
		RiskConfidence:  0.3,
		RiskReason:      "keyword fallback (no structured output)",
		EventType:       TypeUnknownPerson,
		Action:          ActionNotifyOnly,
		SubjectIdentity: "unknown",
	}

	switch {
	case containsAny(low, "delivery", "package", "courier", "parcel"):
		d.EventType = TypeDelivery
		d.RiskLevel = RiskMedium
	case containsAny(low, "loiter", "linger", "concealment", "mask", "hood up", "prowl"):
		d.EventType = TypeLoitering
		d.RiskLevel = RiskHigh
	case containsAny(low, "known person", "recognized", "resident", "family member"):
		d.EventType = TypeKnownPerson
		d.SubjectIdentity = "known"
	case containsAny(low, "vehicle", "car ", "truck"):
		d.EventType = TypeVehicle
	case containsAny(low, "animal", "dog", "cat"):
		d.EventType = TypeAnimal
	}

	Sanitize(d)
	// Sanitize defaults an empty reason; the fallback marker must survive it.
	d.RiskReason = "keyword fallback (no structured output)"
	return d
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
