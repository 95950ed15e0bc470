package vision

import (
	"fmt"
	"strings"
	"time"
)

// PromptContext carries the situational facts woven into the analysis prompt.
// Everything here is advisory: it shapes the model's judgement but the scorer
// stays the sole authority on the final severity.
type PromptContext struct {
	Camera        string
	Zone          string
	Notes         string
	LocalTime     time.Time
	TimeOfDay     string
	HomeMode      string
	KnownFaces    bool
	RecentCount   int
	RecentSummary string
	MediaRelPath  string
}

// BuildPrompt renders the full analysis prompt for one event.
func BuildPrompt(pc PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MEDIA: %s\n\n", pc.MediaRelPath)
	b.WriteString("You are a home security analyst reviewing a camera snapshot. A person was detected.\n\n")

	fmt.Fprintf(&b, "Camera: %s (zone: %s)\n", pc.Camera, pc.Zone)
	fmt.Fprintf(&b, "Zone notes: %s\n", pc.Notes)
	fmt.Fprintf(&b, "Local time: %s (%s)\n", pc.LocalTime.Format("Mon 15:04"), pc.TimeOfDay)
	if pc.HomeMode != "" {
		fmt.Fprintf(&b, "Home mode: %s\n", pc.HomeMode)
	}
	if pc.KnownFaces {
		b.WriteString("Known residents were recently seen on the property.\n")
	}
	if pc.RecentCount > 0 {
		fmt.Fprintf(&b, "Recent activity: %d event(s) on this camera in the last few minutes.\n", pc.RecentCount)
	}
	if pc.RecentSummary != "" {
		fmt.Fprintf(&b, "Recent event summary:\n%s\n", pc.RecentSummary)
	}

	b.WriteString(`
Describe in 3-5 sentences who is visible, what they are doing, and anything
notable about their behavior or appearance. Be factual; do not speculate
beyond what the image shows.

Then, on its own final line, output exactly one line starting with "JSON:"
followed by a single-line JSON object with these fields:
{"risk": "low|medium|high|critical", "confidence": 0.0-1.0, "reason": "short phrase", "type": "unknown_person|known_person|delivery|vehicle|animal|loitering|other", "action": "notify_only|notify_and_save_clip|notify_and_light|notify_and_speaker|notify_and_alarm", "behavior": "short description", "subject": {"identity": "known|unknown", "description": "short description"}}

Do not wrap the JSON in a code fence. Do not output anything after it.
`)
	return b.String()
}
