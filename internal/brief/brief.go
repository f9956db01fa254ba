package brief

import (
	"fmt"
	"strings"
)

// Locale is a BCP-47-ish locale tag ("en-US", "ja-JP"). Matching against
// rule tables is case-insensitive.
type Locale string

func (l Locale) Normalized() string { return strings.ToLower(strings.TrimSpace(string(l))) }

// AspectRatio is a named output format with exact pixel dimensions.
type AspectRatio struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

func (a AspectRatio) Ratio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// BrandGuidelines carries the brand rules every generated asset is
// validated against.
type BrandGuidelines struct {
	// Palette is a set of hex color values ("#ff0000").
	Palette  []string `yaml:"color_palette" json:"color_palette"`
	Style    string   `yaml:"style" json:"style"`
	MinScore float64  `yaml:"min_compliance_score" json:"min_compliance_score"`
}

type Product struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// Messages maps locale -> localized key message. A declared locale
	// without an entry gets the first declared locale's message substituted
	// at assembly time, flagged as a localization gap.
	Messages map[Locale]string `yaml:"messages" json:"messages"`

	LogoRef string `yaml:"logo" json:"logo"`

	// FallbackImages are pre-approved static images, consumed in order when
	// every provider fails for this product.
	FallbackImages []string `yaml:"fallback_images" json:"fallback_images"`
}

// MessageFor returns the product's key message for loc. Locales are
// case-insensitive identities, so lookup matches normalized tags; ties
// between equivalent keys resolve to the lexicographically smallest so
// resolution stays deterministic.
func (p Product) MessageFor(loc Locale) (string, bool) {
	if m, ok := p.Messages[loc]; ok {
		return m, true
	}
	want := loc.Normalized()
	var bestKey Locale
	found := false
	for k := range p.Messages {
		if k.Normalized() != want {
			continue
		}
		if !found || k < bestKey {
			bestKey = k
			found = true
		}
	}
	if !found {
		return "", false
	}
	return p.Messages[bestKey], true
}

// SubstituteMessage returns the first declared locale's message, used when
// the requested locale has no entry. Returns the locale the message came
// from so the gap can be reported.
func (p Product) SubstituteMessage(declared []Locale) (string, Locale, bool) {
	for _, loc := range declared {
		if m, ok := p.MessageFor(loc); ok {
			return m, loc, true
		}
	}
	return "", "", false
}

// CampaignBrief is the immutable, already schema-validated input to a run.
type CampaignBrief struct {
	Name           string          `yaml:"campaign_name" json:"campaign_name"`
	TargetAudience string          `yaml:"target_audience" json:"target_audience"`
	Products       []Product       `yaml:"products" json:"products"`
	Locales        []Locale        `yaml:"locales" json:"locales"`
	AspectRatios   []AspectRatio   `yaml:"aspect_ratios" json:"aspect_ratios"`
	Guidelines     BrandGuidelines `yaml:"brand_guidelines" json:"brand_guidelines"`
}

// Validate enforces the structural invariants: at least one product, locale
// and aspect ratio, and no duplicates along any expansion axis.
func (b *CampaignBrief) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if len(b.Products) == 0 {
		return fmt.Errorf("campaign %q must include at least one product", b.Name)
	}
	if len(b.Locales) == 0 {
		return fmt.Errorf("campaign %q must include at least one locale", b.Name)
	}
	if len(b.AspectRatios) == 0 {
		return fmt.Errorf("campaign %q must include at least one aspect ratio", b.Name)
	}

	seenProducts := map[string]struct{}{}
	for i, p := range b.Products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("product %d must have id and name", i+1)
		}
		if _, dup := seenProducts[p.ID]; dup {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seenProducts[p.ID] = struct{}{}
	}

	seenLocales := map[string]struct{}{}
	for _, loc := range b.Locales {
		key := loc.Normalized()
		if key == "" {
			return fmt.Errorf("empty locale in campaign %q", b.Name)
		}
		if _, dup := seenLocales[key]; dup {
			return fmt.Errorf("duplicate locale %q", loc)
		}
		seenLocales[key] = struct{}{}
	}

	seenRatios := map[string]struct{}{}
	for _, ar := range b.AspectRatios {
		if ar.Name == "" || ar.Width <= 0 || ar.Height <= 0 {
			return fmt.Errorf("aspect ratio %q must have a name and positive dimensions", ar.Name)
		}
		if _, dup := seenRatios[ar.Name]; dup {
			return fmt.Errorf("duplicate aspect ratio %q", ar.Name)
		}
		seenRatios[ar.Name] = struct{}{}
	}
	return nil
}
