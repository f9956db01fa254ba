package provider

import (
	"context"
	"errors"
	"time"
)

// Variant identifies a slot in the generation chain. The set is closed:
// new providers are added by implementing Provider and binding them to a
// slot, never by runtime type inspection.
type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantSecondary Variant = "secondary"
	VariantFallback  Variant = "fallback"
)

// Result is one successfully generated image.
type Result struct {
	Data []byte
	MIME string
}

// Provider is the capability contract every generation backend implements.
// Attempt returns the image bytes or an error classified as either
// *RetryableError or *FatalError; any other error is treated as fatal.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, p Payload) (*Result, error)
}

// RetryableError marks a transient failure: rate limit, timeout, 5xx.
// The chain retries the same provider within policy before advancing.
type RetryableError struct{ Reason string }

func (e *RetryableError) Error() string { return "retryable provider failure: " + e.Reason }

// FatalError marks a non-retryable failure: invalid request, content policy
// rejection. The chain advances to the next provider immediately.
type FatalError struct{ Reason string }

func (e *FatalError) Error() string { return "fatal provider failure: " + e.Reason }

// ErrExhausted is returned when every chain slot has failed.
var ErrExhausted = errors.New("all generation providers exhausted")

// RawImage is a generated pixel buffer tagged with its origin. It is owned
// by the work item that produced it until handed to the assembler.
type RawImage struct {
	Data     []byte
	MIME     string
	Provider string
	Variant  Variant
	Latency  time.Duration
}

// Attempt outcomes recorded for aggregate computation.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
)

// AttemptRecord captures one provider attempt, success or failure.
type AttemptRecord struct {
	Provider string        `json:"provider"`
	Variant  Variant       `json:"variant"`
	Outcome  string        `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}
