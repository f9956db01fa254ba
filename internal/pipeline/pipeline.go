package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"creative-pipeline/internal/assembler"
	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/compliance"
	"creative-pipeline/internal/observability"
	"creative-pipeline/internal/provider"
)

// State of one work item. Transitions run strictly
// Pending → Generating → Assembling → Scoring → Done | Unrecoverable.
type State string

const (
	StatePending       State = "pending"
	StateGenerating    State = "generating"
	StateAssembling    State = "assembling"
	StateScoring       State = "scoring"
	StateDone          State = "done"
	StateUnrecoverable State = "unrecoverable"
)

// WorkItem is the unit of generation: one (product, locale, aspect-ratio)
// triple. Identity is the triple itself.
type WorkItem struct {
	Product brief.Product
	Locale  brief.Locale
	Ratio   brief.AspectRatio
}

func (w WorkItem) Key() string {
	return fmt.Sprintf("%s|%s|%s", w.Product.ID, w.Locale.Normalized(), w.Ratio.Name)
}

// Generator abstracts the provider chain so orchestration is testable with
// scripted providers.
type Generator interface {
	Generate(ctx context.Context, p provider.Payload) (*provider.RawImage, []provider.AttemptRecord, error)
}

// Orchestrator drives every work item of a campaign through generation,
// assembly and scoring, and aggregates the campaign report. One item's
// failure never aborts the run.
type Orchestrator struct {
	gen         Generator
	scorer      *compliance.Scorer
	asmCfg      assembler.Config
	concurrency int
}

func New(gen Generator, scorer *compliance.Scorer, asmCfg assembler.Config, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Orchestrator{gen: gen, scorer: scorer, asmCfg: asmCfg, concurrency: concurrency}
}

// NewRunID mints a campaign run correlation ID.
func NewRunID() string { return "cam_" + uuid.NewString()[:8] }

// Run expands the brief and processes every work item with a bounded worker
// pool. The report lists items in brief-expansion order regardless of
// completion order. Only configuration errors return before a report exists.
func (o *Orchestrator) Run(ctx context.Context, b *brief.CampaignBrief) (*Report, error) {
	return o.RunWithID(ctx, NewRunID(), b)
}

// RunWithID runs under a caller-supplied correlation ID, letting callers
// hand the ID out before the run completes.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string, b *brief.CampaignBrief) (*Report, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("campaign brief: %w", err)
	}

	items := Expand(b)
	start := time.Now()

	log.Info().Str("run", runID).Str("campaign", b.Name).Int("items", len(items)).
		Msg("campaign run starting")

	results := make([]ItemResult, len(items))
	fallbacks := newFallbackTracker()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.processItem(ctx, b, items[idx], fallbacks)
			}
		}()
	}
	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	report := buildReport(runID, b.Name, start, time.Since(start), results)
	observability.RunDuration.Observe(report.Duration.Seconds())

	log.Info().Str("run", runID).
		Float64("success_rate", report.Summary.SuccessRate).
		Float64("fallback_rate", report.Summary.FallbackRate).
		Float64("avg_score", report.Summary.AvgScore).
		Dur("duration", report.Duration).
		Msg("campaign run completed")
	return report, nil
}

// Expand derives the full work item set in brief order:
// products × locales × aspect ratios.
func Expand(b *brief.CampaignBrief) []WorkItem {
	items := make([]WorkItem, 0, len(b.Products)*len(b.Locales)*len(b.AspectRatios))
	for _, p := range b.Products {
		for _, loc := range b.Locales {
			for _, ar := range b.AspectRatios {
				items = append(items, WorkItem{Product: p, Locale: loc, Ratio: ar})
			}
		}
	}
	return items
}

func (o *Orchestrator) processItem(ctx context.Context, b *brief.CampaignBrief, item WorkItem, fallbacks *fallbackTracker) ItemResult {
	res := ItemResult{
		ProductID:   item.Product.ID,
		ProductName: item.Product.Name,
		Locale:      item.Locale,
		Ratio:       item.Ratio.Name,
		State:       StatePending,
	}

	if ctx.Err() != nil {
		return res.fail("cancelled")
	}

	res.State = StateGenerating
	payload := provider.BuildPayload(item.Product, item.Locale, item.Ratio, b.Guidelines, b.TargetAudience)
	raw, attempts, err := o.gen.Generate(ctx, payload)
	res.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res.fail("cancelled")
		}
		if errors.Is(err, provider.ErrExhausted) {
			raw = fallbacks.takeRaw(item.Product)
			if raw == nil {
				observability.ItemsCompleted.WithLabelValues(string(StateUnrecoverable)).Inc()
				return res.fail("providers exhausted and no fallback asset available")
			}
			log.Warn().Str("product", item.Product.ID).Str("ratio", item.Ratio.Name).
				Msg("chain exhausted; using product fallback image")
		} else {
			return res.fail("generation failed: " + err.Error())
		}
	}
	res.UsedFallback = raw.Variant == provider.VariantFallback
	if res.UsedFallback {
		observability.FallbackImages.Inc()
	}

	// Generation is the only suspending step; once a raw image exists the
	// item runs to its terminal state even under cancellation.
	res.State = StateAssembling
	asset, err := assembler.Assemble(raw, item.Product, item.Locale, item.Ratio, b, o.asmCfg)
	if err != nil {
		observability.ItemsCompleted.WithLabelValues(string(StateUnrecoverable)).Inc()
		return res.fail("assembly failed: " + err.Error())
	}
	res.Asset = asset

	res.State = StateScoring
	score := o.scorer.Score(asset, b)
	res.Score = &score
	observability.ComplianceScores.Observe(score.Overall)

	res.State = StateDone
	observability.ItemsCompleted.WithLabelValues(string(StateDone)).Inc()
	return res
}

func (r ItemResult) fail(reason string) ItemResult {
	r.State = StateUnrecoverable
	r.Failure = reason
	return r
}

// fallbackTracker hands out each product's pre-approved fallback images in
// order, first unused first, shared across concurrent workers.
type fallbackTracker struct {
	mu   sync.Mutex
	next map[string]int
}

func newFallbackTracker() *fallbackTracker {
	return &fallbackTracker{next: map[string]int{}}
}

// takeRaw consumes the first unused fallback image that can be read.
// Returns nil when the product has none left.
func (t *fallbackTracker) takeRaw(p brief.Product) *provider.RawImage {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.next[p.ID] < len(p.FallbackImages) {
		path := p.FallbackImages[t.next[p.ID]]
		t.next[p.ID]++
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Str("product", p.ID).Str("path", path).Err(err).
				Msg("fallback image unreadable; trying next")
			continue
		}
		return &provider.RawImage{
			Data:     data,
			MIME:     "image/png",
			Provider: "product-fallback",
			Variant:  provider.VariantFallback,
		}
	}
	return nil
}
