package pipeline

import (
	"fmt"
	"strings"
	"time"

	"creative-pipeline/internal/assembler"
	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/compliance"
	"creative-pipeline/internal/provider"
)

// ItemResult is the terminal record for one work item.
type ItemResult struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	Locale      brief.Locale `json:"locale"`
	Ratio       string       `json:"ratio"`

	State        State                    `json:"state"`
	Asset        *assembler.Asset         `json:"-"`
	Score        *compliance.Score        `json:"score,omitempty"`
	Attempts     []provider.AttemptRecord `json:"attempts,omitempty"`
	UsedFallback bool                     `json:"used_fallback"`
	Failure      string                   `json:"failure,omitempty"`
}

// OutputRef is the asset reference handed to export collaborators, empty
// for items without a finished asset.
func (r ItemResult) OutputRef() string {
	if r.Asset == nil {
		return ""
	}
	return r.Asset.OutputRef
}

// Summary holds the campaign-level aggregates.
type Summary struct {
	Total         int `json:"total"`
	Done          int `json:"done"`
	Unrecoverable int `json:"unrecoverable"`

	SuccessRate  float64 `json:"success_rate"`
	FallbackRate float64 `json:"fallback_rate"`
	// AvgScore averages overall compliance over Done items only.
	AvgScore float64 `json:"avg_score"`
	// ProviderSuccessRate is successful generative attempts over all
	// generative attempts (fallback retrieval excluded).
	ProviderSuccessRate float64 `json:"provider_success_rate"`

	CompliancePassed int `json:"compliance_passed"`
	ComplianceFailed int `json:"compliance_failed"`
}

// Report is created once per run and never mutated afterwards.
type Report struct {
	RunID     string        `json:"run_id"`
	Campaign  string        `json:"campaign"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Items     []ItemResult  `json:"items"`
	Summary   Summary       `json:"summary"`
}

func buildReport(runID, campaign string, start time.Time, dur time.Duration, items []ItemResult) *Report {
	var s Summary
	s.Total = len(items)

	var scoreSum float64
	var genAttempts, genSuccesses int
	for _, it := range items {
		switch it.State {
		case StateDone:
			s.Done++
		default:
			s.Unrecoverable++
		}
		for _, a := range it.Attempts {
			if a.Variant == provider.VariantFallback {
				continue
			}
			genAttempts++
			if a.Outcome == provider.OutcomeSuccess {
				genSuccesses++
			}
		}
		if it.Score != nil {
			scoreSum += it.Score.Overall
			if it.Score.Passed {
				s.CompliancePassed++
			} else {
				s.ComplianceFailed++
			}
		}
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Done) / float64(s.Total)
		fallbackItems := 0
		for _, it := range items {
			if it.UsedFallback {
				fallbackItems++
			}
		}
		s.FallbackRate = float64(fallbackItems) / float64(s.Total)
	}
	if s.Done > 0 {
		s.AvgScore = scoreSum / float64(s.Done)
	}
	if genAttempts > 0 {
		s.ProviderSuccessRate = float64(genSuccesses) / float64(genAttempts)
	}

	return &Report{
		RunID:     runID,
		Campaign:  campaign,
		StartedAt: start.UTC(),
		Duration:  dur,
		Items:     items,
		Summary:   s,
	}
}

// Render produces the human-readable campaign report.
func (r *Report) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nCAMPAIGN PROCESSING REPORT\n%s\n", line, line)
	fmt.Fprintf(&b, "Campaign: %s\n", r.Campaign)
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "Processing Time: %.2fs\n\n", r.Duration.Seconds())

	s := r.Summary
	fmt.Fprintf(&b, "ASSET GENERATION SUMMARY:\n")
	fmt.Fprintf(&b, "  Total Requested: %d\n", s.Total)
	fmt.Fprintf(&b, "  Successfully Generated: %d\n", s.Done)
	fmt.Fprintf(&b, "  Failed: %d\n", s.Unrecoverable)
	fmt.Fprintf(&b, "  Success Rate: %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(&b, "  Fallback Usage: %.1f%%\n\n", s.FallbackRate*100)

	if s.Done > 0 {
		fmt.Fprintf(&b, "BRAND COMPLIANCE SUMMARY:\n")
		fmt.Fprintf(&b, "  Compliance Passed: %d\n", s.CompliancePassed)
		fmt.Fprintf(&b, "  Compliance Failed: %d\n", s.ComplianceFailed)
		fmt.Fprintf(&b, "  Average Score: %.1f/100\n\n", s.AvgScore)
	}

	fmt.Fprintf(&b, "GENERATED ASSETS:\n")
	for _, it := range r.Items {
		status := "OK"
		detail := it.OutputRef()
		if it.State != StateDone {
			status = "FAILED"
			detail = it.Failure
		} else if it.Score != nil {
			detail = fmt.Sprintf("%s (score %.1f)", detail, it.Score.Overall)
		}
		fmt.Fprintf(&b, "  [%s] %s / %s / %s: %s\n", status, it.ProductID, it.Locale, it.Ratio, detail)
	}
	return b.String()
}
