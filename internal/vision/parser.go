package vision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/homesentry/frigate-bridge/internal/metrics"
)

// The vision model emits the decision JSON in one of several forms: after an
// explicit "JSON:" prefix, inside a markdown fence, as a bare object embedded
// in prose, or (in older model replies) as a fragment around the "risk" key.
// The strategies run in order; the first one that yields a decision wins, and
// a keyword fallback guarantees a decision is always produced.

var (
	jsonPrefixRe = regexp.MustCompile(`(?i)^json:\s*(.*)`)
	fenceRe      = regexp.MustCompile("(?is)```(?:json)?\\s*\\n(.*?)\\n\\s*```")
	embeddedRe   = regexp.MustCompile(`\{[^{}]*"risk"\s*:\s*"[^"]*"[^{}]*\}`)
)

// ParseDecision extracts the decision from the analysis text. It never fails:
// when no strategy yields a decision it returns the keyword fallback.
func ParseDecision(analysis string) *Decision {
	if d := parsePrefix(analysis); d != nil {
		metrics.ParseStrategy.WithLabelValues("prefix").Inc()
		return d
	}
	if d := parseFence(analysis); d != nil {
		metrics.ParseStrategy.WithLabelValues("fence").Inc()
		return d
	}
	if d := parseBalanced(analysis); d != nil {
		metrics.ParseStrategy.WithLabelValues("balanced").Inc()
		return d
	}
	if d := parseEmbedded(analysis); d != nil {
		metrics.ParseStrategy.WithLabelValues("embedded").Inc()
		return d
	}
	metrics.ParseStrategy.WithLabelValues("fallback").Inc()
	return FallbackDecision(analysis)
}

// Strategy 1: a line starting with "JSON:". The object may sit on the same
// line or on the next one.
func parsePrefix(analysis string) *Decision {
	lines := strings.Split(analysis, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		m := jsonPrefixRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if candidate == "" && i+1 < len(lines) {
			candidate = strings.TrimSpace(lines[i+1])
		}
		return tryDecode(candidate)
	}
	return nil
}

// Strategy 2: the first fenced code block tagged json or untagged.
func parseFence(analysis string) *Decision {
	m := fenceRe.FindStringSubmatch(analysis)
	if m == nil {
		return nil
	}
	return tryDecode(strings.TrimSpace(m[1]))
}

// Strategy 3: the substring from the first "{" to its matching "}" at
// balanced depth, respecting string literals and escapes.
func parseBalanced(analysis string) *Decision {
	start := strings.IndexByte(analysis, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(analysis); i++ {
		ch := analysis[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return tryDecode(analysis[start : i+1])
			}
		}
	}
	return nil
}

// Strategy 4: any flat fragment containing the "risk" key.
func parseEmbedded(analysis string) *Decision {
	m := embeddedRe.FindString(analysis)
	if m == "" {
		return nil
	}
	return tryDecode(m)
}

// tryDecode parses a JSON candidate and maps it to a Decision. Both the flat
// and the nested shapes are accepted; anything else returns nil.
func tryDecode(candidate string) *Decision {
	if candidate == "" {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil
	}

	riskRaw, hasRisk := obj["risk"]
	if !hasRisk {
		return nil
	}

	d := &Decision{}

	// Nested shape: {"risk":{"level","confidence","reason"},"subject":{...},...}
	var nested struct {
		Level      string  `json:"level"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal(riskRaw, &nested); err == nil && nested.Level != "" {
		d.RiskLevel = RiskLevel(nested.Level)
		d.RiskConfidence = nested.Confidence
		d.RiskReason = nested.Reason
	} else {
		// Flat shape: {"risk":"low","confidence":0.7,"reason":"..."}
		var level string
		if err := json.Unmarshal(riskRaw, &level); err != nil {
			return nil
		}
		d.RiskLevel = RiskLevel(level)
		d.RiskConfidence = jsonFloat(obj["confidence"])
		d.RiskReason = jsonString(obj["reason"])
	}

	d.EventType = EventType(jsonString(obj["type"]))
	if d.EventType == "" {
		d.EventType = EventType(jsonString(obj["event_type"]))
	}
	d.Action = Action(jsonString(obj["action"]))
	d.Behavior = jsonString(obj["behavior"])

	var subject struct {
		Identity    string `json:"identity"`
		Description string `json:"description"`
	}
	if raw, ok := obj["subject"]; ok {
		if err := json.Unmarshal(raw, &subject); err == nil {
			d.SubjectIdentity = subject.Identity
			d.SubjectDescription = subject.Description
		}
	}

	Sanitize(d)
	return d
}

func jsonString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func jsonFloat(raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}

// StripDecisionBlock removes the machine-readable parts (JSON lines, fences,
// MEDIA references) from analysis text, leaving the human-readable prose.
func StripDecisionBlock(analysis string) string {
	analysis = fenceRe.ReplaceAllString(analysis, "")

	var out []string
	skipNextObject := false
	for _, line := range strings.Split(analysis, "\n") {
		s := strings.TrimSpace(line)

		if skipNextObject {
			skipNextObject = false
			if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
				continue
			}
		}
		if m := jsonPrefixRe.FindStringSubmatch(s); m != nil {
			tail := strings.TrimSpace(m[1])
			if tail == "" {
				skipNextObject = true
			}
			continue
		}
		low := strings.ToLower(s)
		if strings.HasPrefix(low, "media:") || strings.Contains(low, "ai-snapshots/") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
