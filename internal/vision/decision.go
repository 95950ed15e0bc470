package vision

import "strings"

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels for comparisons; unknown levels rank lowest.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// BandForScore maps an integer severity score to its risk band.
func BandForScore(score int) RiskLevel {
	switch {
	case score <= 2:
		return RiskLow
	case score <= 4:
		return RiskMedium
	case score <= 6:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// BaselineScore maps a model-proposed risk level to the scoring baseline.
func BaselineScore(r RiskLevel) int {
	switch r {
	case RiskMedium:
		return 3
	case RiskHigh:
		return 5
	case RiskCritical:
		return 7
	default:
		return 1
	}
}

type EventType string

const (
	TypeUnknownPerson EventType = "unknown_person"
	TypeKnownPerson   EventType = "known_person"
	TypeDelivery      EventType = "delivery"
	TypeVehicle       EventType = "vehicle"
	TypeAnimal        EventType = "animal"
	TypeLoitering     EventType = "loitering"
	TypeOther         EventType = "other"
)

var validTypes = map[EventType]bool{
	TypeUnknownPerson: true, TypeKnownPerson: true, TypeDelivery: true,
	TypeVehicle: true, TypeAnimal: true, TypeLoitering: true, TypeOther: true,
}

type Action string

const (
	ActionNotifyOnly Action = "notify_only"
	ActionSaveClip   Action = "notify_and_save_clip"
	ActionLight      Action = "notify_and_light"
	ActionSpeaker    Action = "notify_and_speaker"
	ActionAlarm      Action = "notify_and_alarm"
)

var actionRank = map[Action]int{
	ActionNotifyOnly: 0,
	ActionSaveClip:   1,
	ActionLight:      2,
	ActionSpeaker:    3,
	ActionAlarm:      4,
}

// Allowed reports whether the action is on the closed allowlist.
func (a Action) Allowed() bool {
	_, ok := actionRank[a]
	return ok
}

// Rank orders actions by escalation strength; unknown actions rank lowest.
func (a Action) Rank() int {
	if r, ok := actionRank[a]; ok {
		return r
	}
	return -1
}

// DefaultActionFor maps a risk band to its standard action.
func DefaultActionFor(band RiskLevel) Action {
	switch band {
	case RiskMedium:
		return ActionSaveClip
	case RiskHigh:
		return ActionLight
	case RiskCritical:
		return ActionAlarm
	default:
		return ActionNotifyOnly
	}
}

// Decision is the structured risk assessment for one event. The model
// proposes most fields; the scorer owns RiskScore and the final RiskLevel.
type Decision struct {
	RiskLevel          RiskLevel `json:"risk"`
	RiskScore          int       `json:"risk_score"`
	RiskConfidence     float64   `json:"risk_confidence"`
	RiskReason         string    `json:"risk_reason"`
	EventType          EventType `json:"event_type"`
	Action             Action    `json:"action"`
	SubjectIdentity    string    `json:"subject_identity"`
	SubjectDescription string    `json:"subject_description"`
	Behavior           string    `json:"behavior"`
}

// Sanitize normalizes model output to safe, consistent values: enums are
// lowercased and coerced into their domains, confidence is clamped to [0,1]
// (percent-scale replies are converted), and the risk band invariant is
// restored when a score is present.
func Sanitize(d *Decision) {
	d.RiskLevel = RiskLevel(strings.ToLower(strings.TrimSpace(string(d.RiskLevel))))
	if d.RiskLevel.Rank() < 0 {
		d.RiskLevel = RiskLow
	}

	d.EventType = EventType(strings.ToLower(strings.TrimSpace(string(d.EventType))))
	if !validTypes[d.EventType] {
		d.EventType = TypeOther
	}

	d.Action = Action(strings.ToLower(strings.TrimSpace(string(d.Action))))
	if !d.Action.Allowed() {
		d.Action = ActionNotifyOnly
	}

	if d.RiskConfidence > 1.0 && d.RiskConfidence <= 100.0 {
		d.RiskConfidence = d.RiskConfidence / 100.0
	}
	if d.RiskConfidence < 0 {
		d.RiskConfidence = 0
	}
	if d.RiskConfidence > 1 {
		d.RiskConfidence = 1
	}

	d.SubjectIdentity = strings.ToLower(strings.TrimSpace(d.SubjectIdentity))
	if d.SubjectIdentity != "known" && d.SubjectIdentity != "unknown" {
		if d.EventType == TypeKnownPerson {
			d.SubjectIdentity = "known"
		} else {
			d.SubjectIdentity = "unknown"
		}
	}

	if d.RiskReason == "" {
		d.RiskReason = "AI analysis"
	}
}
