package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/cache"
	"creative-pipeline/internal/pipeline"
	"creative-pipeline/internal/storage"
)

// Archive is the persistence hook for completed reports; nil-able for
// runs that should stay in memory only.
type Archive interface {
	SaveReport(ctx context.Context, r *pipeline.Report) error
}

type job struct {
	id string
	b  *brief.CampaignBrief
}

// Runner consumes submitted briefs one campaign at a time and publishes
// completed reports to the registry, the latest-report snapshot, and the
// archive.
type Runner struct {
	orch    *pipeline.Orchestrator
	reg     *storage.Registry
	latest  *cache.Snapshot[pipeline.Report]
	archive Archive
	jobs    chan job
}

func New(orch *pipeline.Orchestrator, reg *storage.Registry, latest *cache.Snapshot[pipeline.Report], archive Archive, queueCapacity int) *Runner {
	if queueCapacity <= 0 {
		queueCapacity = 16
	}
	return &Runner{
		orch:    orch,
		reg:     reg,
		latest:  latest,
		archive: archive,
		jobs:    make(chan job, queueCapacity),
	}
}

// Submit queues a validated brief and returns the run ID it will complete
// under. A full queue is reported to the caller, never silently dropped.
func (r *Runner) Submit(b *brief.CampaignBrief) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	id := pipeline.NewRunID()
	select {
	case r.jobs <- job{id: id, b: b}:
		return id, nil
	default:
		return "", fmt.Errorf("run queue full")
	}
}

// Loop processes queued briefs until ctx is cancelled.
func (r *Runner) Loop(ctx context.Context) {
	log.Info().Msg("campaign runner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("campaign runner stopped")
			return
		case j := <-r.jobs:
			report, err := r.orch.RunWithID(ctx, j.id, j.b)
			if err != nil {
				log.Error().Err(err).Str("run", j.id).Str("campaign", j.b.Name).
					Msg("campaign run rejected")
				continue
			}
			r.reg.Put(report)
			r.latest.Store(report)
			r.persist(ctx, report)
		}
	}
}

// persist archives the report, retrying transient failures with jittered
// backoff before giving up. The in-memory copy survives regardless.
func (r *Runner) persist(ctx context.Context, report *pipeline.Report) {
	if r.archive == nil {
		return
	}
	for attempt := 1; attempt <= 3; attempt++ {
		err := r.archive.SaveReport(ctx, report)
		if err == nil {
			return
		}
		backoff := jitter(time.Duration(attempt) * time.Second)
		log.Error().Err(err).Str("run", report.RunID).Dur("retry_in", backoff).
			Msg("report archive failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
	log.Error().Str("run", report.RunID).Msg("report not archived; kept in memory only")
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
