package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homesentry/frigate-bridge/internal/actions"
	"github.com/homesentry/frigate-bridge/internal/alert"
	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/history"
	"github.com/homesentry/frigate-bridge/internal/metrics"
	"github.com/homesentry/frigate-bridge/internal/platform/paths"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/publish"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

// Dirs collects the resolved media directories the pipeline writes to.
type Dirs struct {
	Snapshots string
	Clips     string
	Staging   string
}

// Runner drains the intake queue with a small worker pool and drives each
// event through the analysis pipeline. Snapshot, vision and scoring failures
// end the run; everything after the score is best-effort.
type Runner struct {
	cfg       func() *config.Config
	states    *events.StateMap
	queue     *events.Queue
	publisher *publish.Publisher
	nvr       *frigate.Client
	vision    *vision.Client
	builder   *policy.ContextBuilder
	executor  *actions.Executor
	deliverer *alert.Deliverer
	store     *history.Store
	confirmer *Confirmer
	dirs      Dirs
}

func NewRunner(
	cfg func() *config.Config,
	states *events.StateMap,
	queue *events.Queue,
	publisher *publish.Publisher,
	nvr *frigate.Client,
	vc *vision.Client,
	builder *policy.ContextBuilder,
	executor *actions.Executor,
	deliverer *alert.Deliverer,
	store *history.Store,
	dirs Dirs,
) *Runner {
	return &Runner{
		cfg:       cfg,
		states:    states,
		queue:     queue,
		publisher: publisher,
		nvr:       nvr,
		vision:    vc,
		builder:   builder,
		executor:  executor,
		deliverer: deliverer,
		store:     store,
		confirmer: NewConfirmer(cfg, states, nvr, vc, dirs.Snapshots),
		dirs:      dirs,
	}
}

// Run starts the worker pool and blocks until the queue closes and all
// in-flight events finish.
func (r *Runner) Run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				evt := r.queue.Pop()
				if evt == nil {
					return
				}
				r.process(ctx, evt)
			}
		}(i)
	}
	wg.Wait()
}

func (r *Runner) process(ctx context.Context, evt *events.DetectionEvent) {
	cfg := r.cfg()
	taskID := uuid.NewString()
	log.Printf("[INFO] Pipeline: task %s starting for event %s (%s)", taskID, evt.EventID, evt.Camera)

	pctx := r.builder.Build(ctx, evt.Camera)

	// A recognized resident short-circuits everything when the opt-out is
	// on: no vision call, no scoring, no actions. The final payload goes
	// out directly so consumers still see the detection resolve.
	if cfg.ExcludeKnownFaces && pctx.KnownFaces {
		log.Printf("[INFO] Pipeline: known faces present, skipping analysis for event %s", evt.EventID)
		r.skipKnownFace(evt, pctx)
		return
	}

	// Pending goes out first so consumers see the detection immediately.
	if err := r.publisher.Pending(evt); err != nil {
		log.Printf("[WARN] Pipeline: pending publish failed for event %s: %v", evt.EventID, err)
	}

	// Snapshots need a moment to finalize on the NVR.
	if cfg.SnapshotDelaySeconds > 0 {
		select {
		case <-time.After(time.Duration(cfg.SnapshotDelaySeconds) * time.Second):
		case <-ctx.Done():
			r.fail(evt, "shutdown")
			return
		}
	}

	snapPath, err := r.nvr.FetchSnapshot(ctx, evt.EventID, r.dirs.Snapshots, "")
	if err != nil {
		log.Printf("[ERROR] Pipeline: snapshot failed for event %s: %v", evt.EventID, err)
		r.fail(evt, "snapshot")
		return
	}
	if _, err := frigate.StageSnapshot(snapPath, r.dirs.Staging, evt.EventID+".jpg"); err != nil {
		// Staging only serves the agent's media reference; analysis proceeds.
		log.Printf("[WARN] Pipeline: staging failed for event %s: %v", evt.EventID, err)
	}

	prompt := vision.BuildPrompt(vision.PromptContext{
		Camera:        evt.Camera,
		Zone:          pctx.Zone,
		Notes:         pctx.Notes,
		LocalTime:     pctx.LocalTime,
		TimeOfDay:     pctx.TimeOfDay,
		HomeMode:      pctx.HomeMode,
		KnownFaces:    pctx.KnownFaces,
		RecentCount:   pctx.RecentCount,
		RecentSummary: r.builder.RecentSummary(evt.Camera),
		MediaRelPath:  paths.StagingRelPath(evt.EventID),
	})

	analysis, err := r.vision.Analyze(ctx, snapPath, prompt)
	if err != nil {
		log.Printf("[ERROR] Pipeline: vision failed for event %s: %v", evt.EventID, err)
		r.fail(evt, "vision")
		return
	}

	decision := vision.ParseDecision(analysis)
	policy.Score(decision, pctx)
	log.Printf("[INFO] Pipeline: event %s scored %s (%d): %s",
		evt.EventID, decision.RiskLevel, decision.RiskScore, decision.RiskReason)

	if cfg.ConfirmsRisk(string(decision.RiskLevel)) {
		decision = r.confirmer.Confirm(ctx, evt, decision, pctx)
	}

	media := policy.MediaFor(decision.RiskLevel)
	tts := alert.Speech(evt.Camera, decision, pctx)

	result := r.executor.Execute(ctx, evt.EventID, evt.Camera, decision, media, tts)

	body := alert.Format(alert.Input{
		Camera:    evt.Camera,
		EventID:   evt.EventID,
		Decision:  decision,
		Context:   pctx,
		Media:     media,
		ClipPath:  result.ClipPath,
		Analysis:  vision.StripDecisionBlock(analysis),
		Timestamp: evt.ReceivedAt,
	})

	if err := r.publisher.Final(publish.FinalInput{
		Event:        evt,
		Decision:     decision,
		Context:      pctx,
		Media:        media,
		Analysis:     body,
		TTS:          tts,
		SnapshotPath: snapPath,
		ClipPath:     result.ClipPath,
	}); err != nil {
		log.Printf("[ERROR] Pipeline: final publish failed for event %s: %v", evt.EventID, err)
	}

	if r.shouldChat(cfg, decision) {
		if err := r.deliverer.Deliver(ctx, evt.Camera, evt.EventID, body); err != nil {
			log.Printf("[ERROR] Pipeline: chat delivery failed for event %s: %v", evt.EventID, err)
		}
	}

	if cfg.MemoryEnabled {
		err := r.store.Append(history.Record{
			Timestamp: time.Now().UTC(),
			EventID:   evt.EventID,
			Camera:    evt.Camera,
			Risk:      string(decision.RiskLevel),
			RiskScore: decision.RiskScore,
			EventType: string(decision.EventType),
			Behavior:  decision.Behavior,
			Action:    string(decision.Action),
			Delivered: r.shouldChat(cfg, decision),
		})
		if err != nil {
			log.Printf("[ERROR] Pipeline: history append failed for event %s: %v", evt.EventID, err)
		}
	}

	metrics.PipelineCompletions.WithLabelValues("done", string(decision.RiskLevel)).Inc()
	log.Printf("[INFO] Pipeline: task %s done for event %s (%s)", taskID, evt.EventID, decision.RiskLevel)
}

// skipKnownFace publishes the resolved payload for a detection the resident
// opt-out excluded from analysis.
func (r *Runner) skipKnownFace(evt *events.DetectionEvent, pctx policy.Context) {
	d := &vision.Decision{
		RiskLevel:       vision.RiskLow,
		RiskConfidence:  0.95,
		RiskReason:      "known face excluded",
		EventType:       vision.TypeKnownPerson,
		Action:          vision.ActionNotifyOnly,
		SubjectIdentity: "known",
	}
	err := r.publisher.Final(publish.FinalInput{
		Event:    evt,
		Decision: d,
		Context:  pctx,
		Media:    policy.Media{Snapshot: true},
		Analysis: fmt.Sprintf("Person detected on %s — ignored because known face was detected.", evt.Camera),
	})
	if err != nil {
		log.Printf("[ERROR] Pipeline: final publish failed for event %s: %v", evt.EventID, err)
	}
	metrics.PipelineCompletions.WithLabelValues("skipped_known_face", string(vision.RiskLow)).Inc()
}

// shouldChat applies the delivery filters for decisions that did go through
// analysis, including the model identifying a recognized person.
func (r *Runner) shouldChat(cfg *config.Config, d *vision.Decision) bool {
	if cfg.ExcludeKnownFaces && d.EventType == vision.TypeKnownPerson {
		return false
	}
	return r.deliverer.ShouldDeliver(d.RiskLevel)
}

func (r *Runner) fail(evt *events.DetectionEvent, stage string) {
	// The pending payload stays on the bus; consumers see the detection even
	// though analysis never completed.
	metrics.PipelineCompletions.WithLabelValues("failure_"+stage, "none").Inc()
}
