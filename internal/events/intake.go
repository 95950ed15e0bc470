package events

import (
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/metrics"
)

const dedupMaxKeys = 2048

// Intake decodes bus messages, filters non-person events, enforces the
// per-camera cooldown and hands accepted events to the pipeline queue.
type Intake struct {
	cfg    func() *config.Config
	states *StateMap
	queue  *Queue
	seen   *lru.Cache[string, time.Time]
}

func NewIntake(cfg func() *config.Config, states *StateMap, queue *Queue) *Intake {
	seen, _ := lru.New[string, time.Time](dedupMaxKeys)
	return &Intake{cfg: cfg, states: states, queue: queue, seen: seen}
}

// HandleMessage is the bus subscription callback. A malformed message is
// logged and skipped; it never blocks the pipeline.
func (in *Intake) HandleMessage(topic string, payload []byte) {
	evt, err := DecodeDetection(payload)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("malformed").Inc()
		log.Printf("[WARN] Intake: skipping malformed message on %s: %v", topic, err)
		return
	}
	if evt == nil {
		metrics.EventsTotal.WithLabelValues("filtered").Inc()
		return
	}

	cfg := in.cfg()
	now := time.Now()
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second

	// A replayed event id inside the cooldown window is a no-op.
	if addedAt, ok := in.seen.Get(evt.EventID); ok && now.Sub(addedAt) < cooldown {
		metrics.EventsTotal.WithLabelValues("cooldown").Inc()
		log.Printf("[INFO] Intake: duplicate event %s ignored", evt.EventID)
		return
	}

	state := in.states.Get(evt.Camera)
	if !state.TryAccept(now, cooldown) {
		metrics.EventsTotal.WithLabelValues("cooldown").Inc()
		log.Printf("[INFO] Intake: cooldown active for %s, dropping event %s", evt.Camera, evt.EventID)
		return
	}

	in.seen.Add(evt.EventID, now)
	state.RecordAccept(now, time.Duration(cfg.RecentWindowSeconds)*time.Second)
	metrics.EventsTotal.WithLabelValues("accepted").Inc()
	log.Printf("[INFO] Intake: person detected on %s (event %s, score %.2f)", evt.Camera, evt.EventID, evt.Score)

	in.queue.Push(evt)
}
