package compliance

import (
	"fmt"
	"regexp"
	"strings"

	"creative-pipeline/internal/brief"
)

// Prohibited claim terms scanned against overlay text: aggressive
// marketing, absolute superlatives and exaggerated claims, regulated
// health and financial claims.
var defaultDenylist = []string{
	`\b(free|buy now|limited time|click here)\b`,
	`\b(guaranteed|miracle|instant|best ever|number one|#1)\b`,
	`\b(lose weight|diet pill|supplement|cure)\b`,
	`\b(risk[- ]free|guaranteed returns|double your money)\b`,
}

// General sensitivity screens applied to every locale.
var defaultSensitivity = []string{
	`\b(exotic|primitive|backwards)\b`,
	`\b(crazy|insane|mad)\b`,
	`\b(disabled|handicapped|lame)\b`,
}

// Per-locale cultural restriction tables. Keys are full locale tags or
// bare language codes; lookup falls back from "ja-jp" to "ja".
var defaultCulturalRules = map[string][]string{
	"ar": {
		`\b(alcohol|beer|wine|party)\b`,
		`\b(revealing|bikini|shorts)\b`,
	},
	"ja": {
		`\b(aggressive|loud|pushy)\b`,
		`\b(individual|personal|me first)\b`,
	},
	"hi": {
		`\b(beef|cow|leather)\b`,
		`\b(left hand|unclean)\b`,
	},
	"en": {},
}

// RuleSet holds the compiled rule tables a scorer validates against.
type RuleSet struct {
	denylist    []*regexp.Regexp
	sensitivity []*regexp.Regexp
	cultural    map[string][]*regexp.Regexp
}

// NewRuleSet compiles the built-in tables merged with extra per-locale
// patterns from configuration. A bad pattern is a configuration error.
func NewRuleSet(extraCultural map[string][]string) (*RuleSet, error) {
	rs := &RuleSet{cultural: map[string][]*regexp.Regexp{}}

	var err error
	if rs.denylist, err = compileAll(defaultDenylist); err != nil {
		return nil, fmt.Errorf("denylist: %w", err)
	}
	if rs.sensitivity, err = compileAll(defaultSensitivity); err != nil {
		return nil, fmt.Errorf("sensitivity rules: %w", err)
	}

	for key, patterns := range defaultCulturalRules {
		compiled, err := compileAll(patterns)
		if err != nil {
			return nil, fmt.Errorf("cultural rules for %s: %w", key, err)
		}
		rs.cultural[key] = compiled
	}
	for key, patterns := range extraCultural {
		compiled, err := compileAll(patterns)
		if err != nil {
			return nil, fmt.Errorf("cultural rules for %s: %w", key, err)
		}
		k := strings.ToLower(strings.TrimSpace(key))
		rs.cultural[k] = append(rs.cultural[k], compiled...)
	}
	return rs, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// CulturalFor resolves the rule table for a locale: exact tag first, then
// the bare language code. The second return reports whether any table was
// found; a missing table is a gap flag, never a nil dereference.
func (r *RuleSet) CulturalFor(loc brief.Locale) ([]*regexp.Regexp, bool) {
	key := loc.Normalized()
	if rules, ok := r.cultural[key]; ok {
		return rules, true
	}
	if i := strings.IndexAny(key, "-_"); i > 0 {
		if rules, ok := r.cultural[key[:i]]; ok {
			return rules, true
		}
	}
	return nil, false
}

func matchAny(rules []*regexp.Regexp, text string) []string {
	var hits []string
	for _, re := range rules {
		if m := re.FindString(text); m != "" {
			hits = append(hits, m)
		}
	}
	return hits
}
