package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

// Payload is the analysis document published on the bus. Pending and final
// publications share the shape and the event id so consumers update in place.
type Payload struct {
	Camera             string  `json:"camera"`
	Label              string  `json:"label"`
	Risk               string  `json:"risk"`
	RiskScore          int     `json:"risk_score"`
	RiskConfidence     float64 `json:"risk_confidence"`
	EventType          string  `json:"event_type"`
	Action             string  `json:"action"`
	Analysis           string  `json:"analysis"`
	TTS                string  `json:"tts"`
	Behavior           string  `json:"behavior"`
	SubjectIdentity    string  `json:"subject_identity"`
	SubjectDescription string  `json:"subject_description"`
	CameraZone         string  `json:"camera_zone"`
	HomeMode           string  `json:"home_mode"`
	TimeOfDay          string  `json:"time_of_day"`
	MediaSnapshot      bool    `json:"media_snapshot"`
	MediaClip          bool    `json:"media_clip"`
	ClipURL            *string `json:"clip_url"`
	SnapshotPath       string  `json:"snapshot_path"`
	Timestamp          string  `json:"timestamp"`
	EventID            string  `json:"event_id"`
}

// Bus is the publishing side of the message bus client.
type Bus interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher emits analysis payloads on the output topic with QoS 1 and the
// retained flag, so late joiners always see the last state per event.
type Publisher struct {
	cfg func() *config.Config
	bus Bus
}

func NewPublisher(cfg func() *config.Config, b Bus) *Publisher {
	return &Publisher{cfg: cfg, bus: b}
}

// Pending publishes the placeholder payload right after intake, before the
// vision analysis runs.
func (p *Publisher) Pending(evt *events.DetectionEvent) error {
	cfg := p.cfg()
	payload := Payload{
		Camera:          evt.Camera,
		Label:           evt.Label,
		Risk:            string(vision.RiskLow),
		EventType:       string(vision.TypeUnknownPerson),
		Action:          string(vision.ActionNotifyOnly),
		Analysis:        fmt.Sprintf("Person detected on %s — vision analysis pending.", evt.Camera),
		SubjectIdentity: "unknown",
		CameraZone:      cfg.ZoneFor(evt.Camera),
		MediaSnapshot:   true,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		EventID:         evt.EventID,
	}
	return p.send(payload)
}

// FinalInput collects everything the final payload carries.
type FinalInput struct {
	Event        *events.DetectionEvent
	Decision     *vision.Decision
	Context      policy.Context
	Media        policy.Media
	Analysis     string
	TTS          string
	SnapshotPath string
	ClipPath     string
}

// Final publishes the completed analysis for an event.
func (p *Publisher) Final(in FinalInput) error {
	d := in.Decision
	payload := Payload{
		Camera:             in.Event.Camera,
		Label:              in.Event.Label,
		Risk:               string(d.RiskLevel),
		RiskScore:          d.RiskScore,
		RiskConfidence:     d.RiskConfidence,
		EventType:          string(d.EventType),
		Action:             string(d.Action),
		Analysis:           in.Analysis,
		TTS:                in.TTS,
		Behavior:           d.Behavior,
		SubjectIdentity:    d.SubjectIdentity,
		SubjectDescription: d.SubjectDescription,
		CameraZone:         in.Context.Zone,
		HomeMode:           in.Context.HomeMode,
		TimeOfDay:          in.Context.TimeOfDay,
		MediaSnapshot:      in.Media.Snapshot,
		MediaClip:          in.Media.Clip,
		SnapshotPath:       in.SnapshotPath,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		EventID:            in.Event.EventID,
	}
	if in.ClipPath != "" {
		payload.ClipURL = &in.ClipPath
	}
	return p.send(payload)
}

func (p *Publisher) send(payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analysis payload: %w", err)
	}
	topic := p.cfg().TopicPublish
	if err := p.bus.Publish(topic, 1, true, body); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	log.Printf("[INFO] Publisher: %s payload for event %s on %s", payload.Risk, payload.EventID, topic)
	return nil
}
