package compliance

import (
	"bytes"
	"fmt"
	"image"
	"math"

	_ "image/jpeg"
	_ "image/png"

	"creative-pipeline/internal/assembler"
	"creative-pipeline/internal/brief"
)

// Content score ceiling once any denylisted claim term matches.
const denylistCeiling = 40

// Neutral cultural score when no rule table covers the locale.
const neutralCultural = 75

// Flags attached to a score. Non-fatal gaps are flags, never errors.
const (
	FlagCulturalRulesMissing = "cultural_rules_missing"
	FlagLocalizationGap      = "localization_gap"
	FlagDenylistMatch        = "denylist_match"
)

// Weights for the overall weighted mean. All-zero means equal weighting.
type Weights struct {
	Visual    float64
	Content   float64
	Cultural  float64
	Technical float64
}

func (w Weights) normalized() Weights {
	sum := w.Visual + w.Content + w.Cultural + w.Technical
	if sum == 0 {
		return Weights{Visual: 0.25, Content: 0.25, Cultural: 0.25, Technical: 0.25}
	}
	return Weights{w.Visual / sum, w.Content / sum, w.Cultural / sum, w.Technical / sum}
}

// Config is the scoring configuration, injected once at construction.
type Config struct {
	Weights         Weights
	MinScore        float64 // pass threshold unless the brief overrides it
	LocalizationCap float64 // overall ceiling for substituted messages

	MinWidth  int
	MinHeight int

	MaxFileSizeMB    float64
	PaletteTolerance int     // max RGB channel-sum distance to count a pixel on-palette
	PaletteCoverage  float64 // min fraction of sampled pixels on-palette
}

// Score is the fixed-shape compliance result for one asset.
type Score struct {
	Visual    float64 `json:"visual"`
	Content   float64 `json:"content"`
	Cultural  float64 `json:"cultural"`
	Technical float64 `json:"technical"`
	Overall   float64 `json:"overall"`
	Passed    bool    `json:"passed"`

	Flags  []string `json:"flags,omitempty"`
	Issues []string `json:"issues,omitempty"`
}

// Scorer validates finished assets against brand, content, cultural and
// technical rules. Score is pure: identical inputs always produce the
// identical result.
type Scorer struct {
	cfg   Config
	rules *RuleSet
}

func NewScorer(cfg Config, rules *RuleSet) *Scorer {
	if cfg.MinScore == 0 {
		cfg.MinScore = 85
	}
	if cfg.LocalizationCap == 0 {
		cfg.LocalizationCap = 85
	}
	if cfg.MinWidth == 0 {
		cfg.MinWidth = 800
	}
	if cfg.MinHeight == 0 {
		cfg.MinHeight = 600
	}
	if cfg.MaxFileSizeMB == 0 {
		cfg.MaxFileSizeMB = 5.0
	}
	if cfg.PaletteTolerance == 0 {
		cfg.PaletteTolerance = 100
	}
	if cfg.PaletteCoverage == 0 {
		cfg.PaletteCoverage = 0.10
	}
	return &Scorer{cfg: cfg, rules: rules}
}

// Score runs all four checks and rolls them into the weighted overall.
func (s *Scorer) Score(asset *assembler.Asset, b *brief.CampaignBrief) Score {
	var sc Score

	img, _, decodeErr := image.Decode(bytes.NewReader(asset.Data))

	sc.Visual = s.scoreVisual(&sc, asset, img, decodeErr, b)
	sc.Content = s.scoreContent(&sc, asset)
	sc.Cultural = s.scoreCultural(&sc, asset)
	sc.Technical = s.scoreTechnical(&sc, asset, img, decodeErr, b)

	w := s.cfg.Weights.normalized()
	overall := sc.Visual*w.Visual + sc.Content*w.Content + sc.Cultural*w.Cultural + sc.Technical*w.Technical

	if asset.LocalizationGap {
		sc.Flags = append(sc.Flags, FlagLocalizationGap)
		if overall > s.cfg.LocalizationCap {
			overall = s.cfg.LocalizationCap
			sc.Issues = append(sc.Issues, "substituted message caps overall score")
		}
	}

	sc.Overall = round1(overall)

	threshold := s.cfg.MinScore
	if b.Guidelines.MinScore > 0 {
		threshold = b.Guidelines.MinScore
	}
	sc.Passed = sc.Overall >= threshold
	return sc
}

func (s *Scorer) scoreVisual(sc *Score, asset *assembler.Asset, img image.Image, decodeErr error, b *brief.CampaignBrief) float64 {
	if decodeErr != nil {
		sc.Issues = append(sc.Issues, "asset not decodable: "+decodeErr.Error())
		return 0
	}
	score := 100.0

	bounds := img.Bounds()
	if bounds.Dx() < s.cfg.MinWidth || bounds.Dy() < s.cfg.MinHeight {
		score -= 10
		sc.Issues = append(sc.Issues, fmt.Sprintf("resolution %dx%d below minimum %dx%d",
			bounds.Dx(), bounds.Dy(), s.cfg.MinWidth, s.cfg.MinHeight))
	}

	if ar, ok := ratioByName(b, asset.RatioName); ok {
		actual := float64(bounds.Dx()) / float64(bounds.Dy())
		expected := ar.Ratio()
		if expected > 0 && math.Abs(actual-expected)/expected > 0.05 {
			score -= 10
			sc.Issues = append(sc.Issues, fmt.Sprintf("aspect ratio %.3f deviates from %s", actual, ar.Name))
		}
	}

	if len(b.Guidelines.Palette) > 0 {
		coverage := paletteCoverage(img, b.Guidelines.Palette, s.cfg.PaletteTolerance)
		if coverage < s.cfg.PaletteCoverage {
			score -= 15
			sc.Issues = append(sc.Issues, fmt.Sprintf("palette coverage %.2f below %.2f", coverage, s.cfg.PaletteCoverage))
		}
	}

	return clamp(score)
}

func (s *Scorer) scoreContent(sc *Score, asset *assembler.Asset) float64 {
	score := 100.0
	msg := asset.Message

	hits := matchAny(s.rules.denylist, msg)
	for _, hit := range hits {
		score -= 20
		sc.Issues = append(sc.Issues, "prohibited claim term: "+hit)
	}

	switch n := len(msg); {
	case n > 100:
		score -= 5
		sc.Issues = append(sc.Issues, "message too long for social media")
	case n < 10:
		score -= 10
		sc.Issues = append(sc.Issues, "message too short")
	}

	if asset.ProductName != "" && !containsFold(msg, asset.ProductName) {
		score -= 5
	}

	if len(hits) > 0 {
		sc.Flags = append(sc.Flags, FlagDenylistMatch)
		if score > denylistCeiling {
			score = denylistCeiling
		}
	}
	return clamp(score)
}

func (s *Scorer) scoreCultural(sc *Score, asset *assembler.Asset) float64 {
	rules, found := s.rules.CulturalFor(asset.Locale)
	if !found {
		sc.Flags = append(sc.Flags, FlagCulturalRulesMissing)
		return neutralCultural
	}

	score := 100.0
	for _, hit := range matchAny(rules, asset.Message) {
		score -= 25
		sc.Issues = append(sc.Issues, fmt.Sprintf("culturally restricted term for %s: %s", asset.Locale, hit))
	}
	for _, hit := range matchAny(s.rules.sensitivity, asset.Message) {
		score -= 15
		sc.Issues = append(sc.Issues, "potentially insensitive language: "+hit)
	}
	return clamp(score)
}

func (s *Scorer) scoreTechnical(sc *Score, asset *assembler.Asset, img image.Image, decodeErr error, b *brief.CampaignBrief) float64 {
	if decodeErr != nil {
		sc.Issues = append(sc.Issues, "technical validation impossible on undecodable asset")
		return 0
	}
	score := 100.0

	sizeMB := float64(len(asset.Data)) / (1024 * 1024)
	if sizeMB > s.cfg.MaxFileSizeMB {
		score -= 10
		sc.Issues = append(sc.Issues, fmt.Sprintf("file size %.1fMB exceeds %.1fMB", sizeMB, s.cfg.MaxFileSizeMB))
	}

	if !displayableColorModel(img) {
		score -= 10
		sc.Issues = append(sc.Issues, "color mode unsuitable for digital display")
	}

	if ar, ok := ratioByName(b, asset.RatioName); ok {
		bounds := img.Bounds()
		if bounds.Dx() != ar.Width || bounds.Dy() != ar.Height {
			score -= 15
			sc.Issues = append(sc.Issues, fmt.Sprintf("dimensions %dx%d not exactly %dx%d",
				bounds.Dx(), bounds.Dy(), ar.Width, ar.Height))
		}
	}

	return clamp(score)
}

func ratioByName(b *brief.CampaignBrief, name string) (brief.AspectRatio, bool) {
	for _, ar := range b.AspectRatios {
		if ar.Name == name {
			return ar, true
		}
	}
	return brief.AspectRatio{}, false
}
