package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// DetectionEvent is one accepted person detection. It lives for the duration
// of a single pipeline run.
type DetectionEvent struct {
	EventID    string
	Camera     string
	Label      string
	Score      float64
	StartTime  time.Time
	ReceivedAt time.Time
}

// frigateMessage mirrors the NVR event envelope on the bus. Only the fields
// the bridge consumes are decoded.
type frigateMessage struct {
	Type  string `json:"type"`
	After struct {
		ID        string  `json:"id"`
		Camera    string  `json:"camera"`
		Label     string  `json:"label"`
		Score     float64 `json:"score"`
		StartTime float64 `json:"start_time"`
	} `json:"after"`
}

// DecodeDetection parses a raw bus payload. It returns (nil, nil) for
// well-formed messages that are not new person detections, and an error only
// for malformed payloads.
func DecodeDetection(payload []byte) (*DetectionEvent, error) {
	var msg frigateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode detection event: %w", err)
	}
	if msg.Type != "new" {
		return nil, nil
	}
	if msg.After.Label != "person" {
		return nil, nil
	}
	if msg.After.ID == "" {
		return nil, fmt.Errorf("detection event missing id")
	}

	start := time.Unix(int64(msg.After.StartTime), 0).UTC()
	return &DetectionEvent{
		EventID:    msg.After.ID,
		Camera:     msg.After.Camera,
		Label:      msg.After.Label,
		Score:      msg.After.Score,
		StartTime:  start,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
