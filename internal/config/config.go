package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// User is one entry of the operator table used by the read-only status API.
type User struct {
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
}

// Config is the full runtime configuration of the bridge. The JSON shape is
// shared with the external control panel, which edits the same file.
type Config struct {
	MQTTHost       string `json:"mqtt_host"`
	MQTTPort       int    `json:"mqtt_port"`
	MQTTUser       string `json:"mqtt_user"`
	MQTTPass       string `json:"mqtt_pass"`
	TopicSubscribe string `json:"mqtt_topic_subscribe"`
	TopicPublish   string `json:"mqtt_topic_publish"`

	FrigateAPI string `json:"frigate_api"`

	GatewayWebhook    string `json:"gateway_webhook"`
	GatewayToken      string `json:"gateway_token"`
	DeliveryAgentName string `json:"delivery_agent_name"`

	VisionAPI             string `json:"vision_api"`
	VisionModel           string `json:"vision_model"`
	VisionAPIFallback     string `json:"vision_api_fallback"`
	VisionModelFallback   string `json:"vision_model_fallback"`
	VisionTimeoutSeconds  int    `json:"vision_timeout_seconds"`

	Recipients  []string `json:"recipients"`
	ChatChannel string   `json:"chat_channel"`
	ChatEnabled bool     `json:"chat_enabled"`

	CooldownSeconds      int `json:"cooldown_seconds"`
	SnapshotDelaySeconds int `json:"snapshot_delay_seconds"`
	QueueLimit           int `json:"queue_limit"`

	StorageRoot       string `json:"storage_root"`
	WorkspaceRoot     string `json:"workspace_root"`
	StagingTTLMinutes int    `json:"staging_ttl_minutes"`

	HubURL            string              `json:"ha_url"`
	HubToken          string              `json:"ha_token"`
	HomeModeEntity    string              `json:"ha_home_mode_entity"`
	KnownFacesEntity  string              `json:"ha_known_faces_entity"`
	ExcludeKnownFaces bool                `json:"exclude_known_faces"`
	AlarmEntity       string              `json:"alarm_entity"`
	SpeakerEntities   []string            `json:"speaker_entities"`
	CameraZoneLights  map[string][]string `json:"camera_zone_lights"`
	ZoneLightsDefault []string            `json:"camera_zone_lights_default"`

	CameraZones map[string]string `json:"camera_policy_zones"`
	ZoneDefault string            `json:"camera_policy_zone_default"`
	CameraNotes map[string]string `json:"camera_context_notes"`

	DayStartHour     int `json:"day_start_hour"`
	EveningStartHour int `json:"evening_start_hour"`
	NightStartHour   int `json:"night_start_hour"`
	QuietHoursStart  int `json:"quiet_hours_start"`
	QuietHoursEnd    int `json:"quiet_hours_end"`

	RecentWindowSeconds  int    `json:"recent_events_window_seconds"`
	HistoryFile          string `json:"event_history_file"`
	HistoryWindowSeconds int    `json:"event_history_window_seconds"`
	HistoryMaxLines      int    `json:"event_history_max_lines"`

	ContextEnabled        bool     `json:"phase3_enabled"`
	MemoryEnabled         bool     `json:"phase4_enabled"`
	ConfirmEnabled        bool     `json:"phase5_enabled"`
	ConfirmDelaySeconds   int      `json:"phase5_confirm_delay_seconds"`
	ConfirmTimeoutSeconds int      `json:"phase5_confirm_timeout_seconds"`
	ConfirmRisks          []string `json:"phase5_confirm_risks"`

	OpsListen       string `json:"ops_listen"`
	AuditSigningKey string `json:"audit_signing_key"`
	Users           []User `json:"users"`
}

// Default returns a config populated with the documented defaults. Loaded
// files overlay on top of this.
func Default() *Config {
	return &Config{
		MQTTHost:              "localhost",
		MQTTPort:              1883,
		TopicSubscribe:        "frigate/events",
		TopicPublish:          "bridge/frigate/analysis",
		FrigateAPI:            "http://localhost:5000",
		DeliveryAgentName:     "main",
		VisionModel:           "qwen2.5vl:7b",
		VisionTimeoutSeconds:  60,
		ChatChannel:           "whatsapp",
		ChatEnabled:           true,
		CooldownSeconds:       30,
		SnapshotDelaySeconds:  3,
		QueueLimit:            64,
		StagingTTLMinutes:     120,
		HomeModeEntity:        "input_select.home_mode",
		KnownFacesEntity:      "binary_sensor.known_faces_present",
		AlarmEntity:           "switch.security_siren",
		ZoneDefault:           "entry",
		DayStartHour:          6,
		EveningStartHour:      18,
		NightStartHour:        23,
		QuietHoursStart:       23,
		QuietHoursEnd:         6,
		RecentWindowSeconds:   600,
		HistoryWindowSeconds:  1800,
		HistoryMaxLines:       5000,
		ContextEnabled:        true,
		MemoryEnabled:         true,
		ConfirmEnabled:        true,
		ConfirmDelaySeconds:   4,
		ConfirmTimeoutSeconds: 90,
		ConfirmRisks:          []string{"high", "critical"},
		OpsListen:             ":8090",
	}
}

// Load reads and validates the config file at path, overlaying the documented
// defaults and any secrets from secretsPath (.env format, optional).
func Load(path, secretsPath string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applySecrets(cfg, secretsPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overlays secret values from a dotenv file. Secrets in the env
// file always win over the JSON document, so the control panel can keep the
// JSON copy masked.
func applySecrets(cfg *Config, secretsPath string) {
	if secretsPath == "" {
		return
	}
	env, err := godotenv.Read(secretsPath)
	if err != nil {
		return
	}
	if v := env["FRIGATE_MQTT_PASS"]; v != "" {
		cfg.MQTTPass = v
	}
	if v := env["GATEWAY_TOKEN"]; v != "" {
		cfg.GatewayToken = v
	}
	if v := env["HA_TOKEN"]; v != "" {
		cfg.HubToken = v
	}
	if v := env["AUDIT_SIGNING_KEY"]; v != "" {
		cfg.AuditSigningKey = v
	}
}

// looksMasked reports whether a value is a control-panel masked secret. Masked
// values must never overwrite a live secret on reload.
func looksMasked(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), "********")
}

// MergeSecrets carries live secret values from prev into next wherever next
// holds a masked placeholder.
func MergeSecrets(next, prev *Config) {
	if prev == nil {
		return
	}
	if looksMasked(next.MQTTPass) {
		next.MQTTPass = prev.MQTTPass
	}
	if looksMasked(next.GatewayToken) {
		next.GatewayToken = prev.GatewayToken
	}
	if looksMasked(next.HubToken) {
		next.HubToken = prev.HubToken
	}
	if looksMasked(next.AuditSigningKey) {
		next.AuditSigningKey = prev.AuditSigningKey
	}
}

var validRisks = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Validate checks required fields, enum domains and numeric ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.MQTTHost == "" {
		problems = append(problems, "mqtt_host is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		problems = append(problems, fmt.Sprintf("mqtt_port %d out of range", c.MQTTPort))
	}
	if c.TopicSubscribe == "" {
		problems = append(problems, "mqtt_topic_subscribe is required")
	}
	if c.TopicPublish == "" {
		problems = append(problems, "mqtt_topic_publish is required")
	}
	if c.FrigateAPI == "" {
		problems = append(problems, "frigate_api is required")
	}
	if c.VisionAPI == "" && c.VisionAPIFallback == "" {
		problems = append(problems, "vision_api or vision_api_fallback is required")
	}
	if c.ChatEnabled && c.GatewayWebhook == "" {
		problems = append(problems, "gateway_webhook is required when chat is enabled")
	}
	if c.ChatEnabled && len(c.Recipients) == 0 {
		problems = append(problems, "recipients must not be empty when chat is enabled")
	}
	if c.CooldownSeconds < 0 {
		problems = append(problems, "cooldown_seconds must be >= 0")
	}
	if c.SnapshotDelaySeconds < 0 {
		problems = append(problems, "snapshot_delay_seconds must be >= 0")
	}
	if c.VisionTimeoutSeconds <= 0 {
		problems = append(problems, "vision_timeout_seconds must be > 0")
	}
	if c.QueueLimit <= 0 {
		problems = append(problems, "queue_limit must be > 0")
	}
	if c.HistoryMaxLines <= 0 {
		problems = append(problems, "event_history_max_lines must be > 0")
	}
	for _, h := range []struct {
		name string
		val  int
	}{
		{"quiet_hours_start", c.QuietHoursStart},
		{"quiet_hours_end", c.QuietHoursEnd},
		{"day_start_hour", c.DayStartHour},
		{"evening_start_hour", c.EveningStartHour},
		{"night_start_hour", c.NightStartHour},
	} {
		if h.val < 0 || h.val > 23 {
			problems = append(problems, fmt.Sprintf("%s %d out of range 0-23", h.name, h.val))
		}
	}
	for _, r := range c.ConfirmRisks {
		if !validRisks[strings.ToLower(r)] {
			problems = append(problems, fmt.Sprintf("phase5_confirm_risks contains unknown level %q", r))
		}
	}
	if c.ConfirmDelaySeconds < 0 || c.ConfirmTimeoutSeconds <= 0 {
		problems = append(problems, "phase5 confirm delay/timeout out of range")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ConfirmsRisk reports whether the confirmation pass applies to the given
// post-scoring risk level.
func (c *Config) ConfirmsRisk(level string) bool {
	if !c.ConfirmEnabled {
		return false
	}
	for _, r := range c.ConfirmRisks {
		if strings.EqualFold(r, level) {
			return true
		}
	}
	return false
}

// ZoneFor returns the policy zone tag for a camera.
func (c *Config) ZoneFor(camera string) string {
	if z, ok := c.CameraZones[camera]; ok && z != "" {
		return z
	}
	return c.ZoneDefault
}

// NotesFor returns the free-form policy note for a camera.
func (c *Config) NotesFor(camera string) string {
	if n, ok := c.CameraNotes[camera]; ok && n != "" {
		return n
	}
	return "unspecified"
}

// LightsFor returns the light entities for a camera's zone.
func (c *Config) LightsFor(camera string) []string {
	if l, ok := c.CameraZoneLights[camera]; ok && len(l) > 0 {
		return l
	}
	return c.ZoneLightsDefault
}
