package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"creative-pipeline/internal/brief"
)

// scriptedProvider returns its canned responses in order, then repeats the
// last one.
type scriptedProvider struct {
	name   string
	script []error
	calls  int
	result *Result
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Attempt(_ context.Context, _ Payload) (*Result, error) {
	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++
	if err := p.script[idx]; err != nil {
		return nil, err
	}
	res := p.result
	if res == nil {
		res = &Result{Data: []byte("img"), MIME: "image/png"}
	}
	return res, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func testPayload() Payload {
	return BuildPayload(
		brief.Product{ID: "p1", Name: "Glow Serum"},
		"en-US",
		brief.AspectRatio{Name: "1:1", Width: 1080, Height: 1080},
		brief.BrandGuidelines{},
		"young professionals",
	)
}

func TestChain_RetryThenSuccess(t *testing.T) {
	p := &scriptedProvider{name: "gemini", script: []error{
		&RetryableError{Reason: "rate limited"},
		&RetryableError{Reason: "rate limited"},
		nil,
	}}
	chain := NewChain(RetryPolicy{MaxRetries: 2, Sleep: noSleep}, 2,
		Slot{Variant: VariantPrimary, Provider: p})

	raw, records, err := chain.Generate(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, "gemini", raw.Provider)
	assert.Equal(t, VariantPrimary, raw.Variant)
	assert.Equal(t, 3, p.calls)

	if len(records) != 3 {
		t.Fatalf("expected 3 attempt records, got %d", len(records))
	}
	assert.Equal(t, OutcomeRetryable, records[0].Outcome)
	assert.Equal(t, OutcomeRetryable, records[1].Outcome)
	assert.Equal(t, OutcomeSuccess, records[2].Outcome)
}

func TestChain_FatalAdvancesImmediately(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", script: []error{
		&FatalError{Reason: "content policy rejection"},
	}}
	secondary := &scriptedProvider{name: "stability", script: []error{nil}}
	chain := NewChain(RetryPolicy{MaxRetries: 2, Sleep: noSleep}, 2,
		Slot{Variant: VariantPrimary, Provider: primary},
		Slot{Variant: VariantSecondary, Provider: secondary})

	raw, records, err := chain.Generate(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, 1, primary.calls, "fatal failures must not be retried")
	assert.Equal(t, "stability", raw.Provider)
	assert.Equal(t, VariantSecondary, raw.Variant)

	assert.Equal(t, OutcomeFatal, records[0].Outcome)
	assert.Equal(t, "content policy rejection", records[0].Reason)
	assert.Equal(t, OutcomeSuccess, records[1].Outcome)
}

func TestChain_Exhausted(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", script: []error{
		&RetryableError{Reason: "timeout"},
	}}
	secondary := &scriptedProvider{name: "stability", script: []error{
		&FatalError{Reason: "invalid request"},
	}}
	fallback := &scriptedProvider{name: "static-library", script: []error{
		&FatalError{Reason: "no asset"},
	}}
	chain := NewChain(RetryPolicy{MaxRetries: 2, Sleep: noSleep}, 2,
		Slot{Variant: VariantPrimary, Provider: primary},
		Slot{Variant: VariantSecondary, Provider: secondary},
		Slot{Variant: VariantFallback, Provider: fallback})

	raw, records, err := chain.Generate(context.Background(), testPayload())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if raw != nil {
		t.Fatalf("expected no image on exhaustion")
	}
	// 1 initial + 2 retries on primary, 1 fatal each on the rest.
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Len(t, records, 5)
}

func TestChain_SleepObservesBackoff(t *testing.T) {
	var delays []time.Duration
	p := &scriptedProvider{name: "gemini", script: []error{
		&RetryableError{Reason: "overloaded"},
		&RetryableError{Reason: "overloaded"},
		nil,
	}}
	policy := RetryPolicy{
		MaxRetries:  2,
		BaseBackoff: 100 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}
	chain := NewChain(policy, 2, Slot{Variant: VariantPrimary, Provider: p})

	_, _, err := chain.Generate(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestChain_ContextCancelled(t *testing.T) {
	p := &scriptedProvider{name: "gemini", script: []error{nil}}
	chain := NewChain(RetryPolicy{MaxRetries: 2, Sleep: noSleep}, 2,
		Slot{Variant: VariantPrimary, Provider: p})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := chain.Generate(ctx, testPayload())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assert.Equal(t, 0, p.calls)
}

func TestRetryPolicy_BackoffDoubles(t *testing.T) {
	p := RetryPolicy{BaseBackoff: time.Second}
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
}

func TestBuildPayload_Deterministic(t *testing.T) {
	a := testPayload()
	b := testPayload()
	assert.Equal(t, a, b)
	assert.Contains(t, a.Prompt, "Glow Serum")
	assert.Contains(t, a.Prompt, "en-us market")
	assert.Equal(t, 1080, a.Width)
}
