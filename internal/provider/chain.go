package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"creative-pipeline/internal/observability"
)

// RetryPolicy bounds retries of a single provider and shapes the delay
// between them. Sleep is injectable so tests run without real delays.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Backoff returns the delay before retry n (1-based): base doubled per retry.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	d := p.BaseBackoff
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < retry; i++ {
		d *= 2
	}
	return d
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Slot binds a provider to its position in the chain.
type Slot struct {
	Variant  Variant
	Provider Provider
}

// Chain drives ordered attempts across the configured provider variants.
// Provider failures never escape as errors except ErrExhausted and context
// cancellation; everything else is converted to attempt records.
//
// The per-provider gates are the only state shared across concurrent work
// items: they cap in-flight requests per backend.
type Chain struct {
	slots  []Slot
	policy RetryPolicy
	gates  map[string]chan struct{}
}

func NewChain(policy RetryPolicy, maxInFlight int, slots ...Slot) *Chain {
	if maxInFlight <= 0 {
		maxInFlight = 2
	}
	gates := make(map[string]chan struct{}, len(slots))
	for _, s := range slots {
		if _, ok := gates[s.Provider.Name()]; !ok {
			gates[s.Provider.Name()] = make(chan struct{}, maxInFlight)
		}
	}
	return &Chain{slots: slots, policy: policy, gates: gates}
}

// Generate runs the fallback chain for one payload. On success it returns
// the raw image plus every attempt made along the way; on exhaustion the
// records are returned with ErrExhausted.
func (c *Chain) Generate(ctx context.Context, p Payload) (*RawImage, []AttemptRecord, error) {
	var records []AttemptRecord

	for _, slot := range c.slots {
		retries := 0
		for {
			if err := ctx.Err(); err != nil {
				return nil, records, err
			}

			res, latency, err := c.attempt(ctx, slot, p)
			if err == nil {
				records = append(records, AttemptRecord{
					Provider: slot.Provider.Name(),
					Variant:  slot.Variant,
					Outcome:  OutcomeSuccess,
					Latency:  latency,
				})
				observability.GenerationAttempts.WithLabelValues(slot.Provider.Name(), OutcomeSuccess).Inc()
				return &RawImage{
					Data:     res.Data,
					MIME:     res.MIME,
					Provider: slot.Provider.Name(),
					Variant:  slot.Variant,
					Latency:  latency,
				}, records, nil
			}

			if ctx.Err() != nil {
				return nil, records, ctx.Err()
			}

			var re *RetryableError
			if errors.As(err, &re) {
				records = append(records, AttemptRecord{
					Provider: slot.Provider.Name(),
					Variant:  slot.Variant,
					Outcome:  OutcomeRetryable,
					Reason:   re.Reason,
					Latency:  latency,
				})
				observability.GenerationAttempts.WithLabelValues(slot.Provider.Name(), OutcomeRetryable).Inc()
				if retries >= c.policy.MaxRetries {
					log.Warn().Str("provider", slot.Provider.Name()).Int("retries", retries).
						Msg("retries exhausted; advancing to next provider")
					break
				}
				retries++
				delay := c.policy.Backoff(retries)
				log.Debug().Str("provider", slot.Provider.Name()).Dur("backoff", delay).
					Str("reason", re.Reason).Msg("retryable failure; backing off")
				if err := c.policy.sleep(ctx, delay); err != nil {
					return nil, records, err
				}
				continue
			}

			// Fatal (or unclassified) failure: advance immediately.
			reason := err.Error()
			var fe *FatalError
			if errors.As(err, &fe) {
				reason = fe.Reason
			}
			records = append(records, AttemptRecord{
				Provider: slot.Provider.Name(),
				Variant:  slot.Variant,
				Outcome:  OutcomeFatal,
				Reason:   reason,
				Latency:  latency,
			})
			observability.GenerationAttempts.WithLabelValues(slot.Provider.Name(), OutcomeFatal).Inc()
			log.Warn().Str("provider", slot.Provider.Name()).Str("reason", reason).
				Msg("fatal failure; advancing to next provider")
			break
		}
	}

	return nil, records, ErrExhausted
}

// attempt runs one gated provider call and measures its latency.
func (c *Chain) attempt(ctx context.Context, slot Slot, p Payload) (*Result, time.Duration, error) {
	gate := c.gates[slot.Provider.Name()]
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	defer func() { <-gate }()

	start := time.Now()
	res, err := slot.Provider.Attempt(ctx, p)
	return res, time.Since(start), err
}
