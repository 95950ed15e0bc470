package policy

import "github.com/homesentry/frigate-bridge/internal/vision"

// Media is the per-risk media plan attached to the final payload.
type Media struct {
	Snapshot    bool `json:"snapshot"`
	Clip        bool `json:"clip"`
	ClipSeconds int  `json:"clip_seconds"`
	Monitoring  bool `json:"monitoring"`
}

// MediaFor maps a risk band to its media requirements. Every band keeps the
// snapshot; clip length and the monitoring flag grow with severity.
func MediaFor(band vision.RiskLevel) Media {
	switch band {
	case vision.RiskMedium:
		return Media{Snapshot: true, Clip: true, ClipSeconds: 15}
	case vision.RiskHigh:
		return Media{Snapshot: true, Clip: true, ClipSeconds: 30, Monitoring: true}
	case vision.RiskCritical:
		return Media{Snapshot: true, Clip: true, ClipSeconds: 60, Monitoring: true}
	default:
		return Media{Snapshot: true}
	}
}
