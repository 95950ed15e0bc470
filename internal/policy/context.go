package policy

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/history"
	"github.com/homesentry/frigate-bridge/internal/homeassistant"
)

// Context is the situational snapshot taken for one event. It feeds the
// vision prompt and the scorer; a hub outage degrades it to config-only
// fields rather than failing the pipeline.
type Context struct {
	LocalTime   time.Time
	TimeOfDay   string
	HomeMode    string
	KnownFaces  bool
	Zone        string
	Notes       string
	RecentCount int
}

const (
	hubCacheTTL  = 30 * time.Second
	hubCacheSize = 16
)

// ContextBuilder assembles Contexts. Hub state reads are cached so a burst
// of events does not hammer the hub's REST API.
type ContextBuilder struct {
	cfg     func() *config.Config
	hub     *homeassistant.Client
	store   *history.Store
	hubSeen *expirable.LRU[string, string]
}

func NewContextBuilder(cfg func() *config.Config, hub *homeassistant.Client, store *history.Store) *ContextBuilder {
	return &ContextBuilder{
		cfg:     cfg,
		hub:     hub,
		store:   store,
		hubSeen: expirable.NewLRU[string, string](hubCacheSize, nil, hubCacheTTL),
	}
}

// Build returns the context for one camera at the current moment.
func (b *ContextBuilder) Build(ctx context.Context, camera string) Context {
	cfg := b.cfg()
	now := time.Now()

	out := Context{
		LocalTime: now,
		TimeOfDay: TimeOfDay(now, cfg),
		Zone:      cfg.ZoneFor(camera),
		Notes:     cfg.NotesFor(camera),
	}

	if cfg.ContextEnabled && b.hub != nil && b.hub.Configured() {
		out.HomeMode = b.hubState(ctx, cfg.HomeModeEntity)
		out.KnownFaces = b.hubState(ctx, cfg.KnownFacesEntity) == "on"
	}

	if cfg.MemoryEnabled && b.store != nil {
		window := time.Duration(cfg.RecentWindowSeconds) * time.Second
		out.RecentCount = b.store.CountSince(camera, window)
	}
	return out
}

// RecentSummary renders recent history for the camera as prompt lines.
func (b *ContextBuilder) RecentSummary(camera string) string {
	cfg := b.cfg()
	if !cfg.MemoryEnabled || b.store == nil {
		return ""
	}
	window := time.Duration(cfg.HistoryWindowSeconds) * time.Second
	recs, err := b.store.Recent(camera, window)
	if err != nil {
		log.Printf("[WARN] Context: history read failed: %v", err)
		return ""
	}
	return history.Summarize(recs, 5)
}

func (b *ContextBuilder) hubState(ctx context.Context, entityID string) string {
	if entityID == "" {
		return ""
	}
	if v, ok := b.hubSeen.Get(entityID); ok {
		return v
	}
	v, err := b.hub.GetState(ctx, entityID)
	if err != nil {
		log.Printf("[WARN] Context: hub state %s unavailable: %v", entityID, err)
		return ""
	}
	b.hubSeen.Add(entityID, v)
	return v
}

// TimeOfDay classifies a local time into day, evening or night using the
// configured band boundaries. The night band wraps past midnight until the
// day start hour.
func TimeOfDay(t time.Time, cfg *config.Config) string {
	h := t.Hour()
	switch {
	case h >= cfg.NightStartHour || h < cfg.DayStartHour:
		return "night"
	case h >= cfg.EveningStartHour:
		return "evening"
	default:
		return "day"
	}
}

// InQuietHours reports whether t falls in the configured quiet window, which
// may wrap past midnight.
func InQuietHours(t time.Time, cfg *config.Config) bool {
	h := t.Hour()
	start, end := cfg.QuietHoursStart, cfg.QuietHoursEnd
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
