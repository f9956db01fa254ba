package provider

import (
	"fmt"
	"strings"

	"creative-pipeline/internal/brief"
)

// Payload is the content sent to a generative provider for one work item.
// Construction is a pure function of its inputs: the same product, locale,
// ratio and guidelines always produce the same payload.
type Payload struct {
	ProductID   string
	ProductName string
	Locale      brief.Locale
	RatioName   string
	Width       int
	Height      int
	Prompt      string
}

// BuildPayload derives the generation payload for one (product, locale,
// aspect-ratio) triple. Locale and guidelines shape only the prompt, never
// which provider is tried.
func BuildPayload(p brief.Product, loc brief.Locale, ar brief.AspectRatio, g brief.BrandGuidelines, audience string) Payload {
	if audience == "" {
		audience = "consumers"
	}
	parts := []string{
		fmt.Sprintf("Professional product photography of %s", p.Name),
		fmt.Sprintf("for %s in the %s market", audience, loc.Normalized()),
		"high quality, clean background",
		"suitable for social media marketing",
	}
	if g.Style != "" {
		parts = append(parts, fmt.Sprintf("%s style", g.Style))
	}
	if len(g.Palette) > 0 {
		parts = append(parts, "brand colors "+strings.Join(g.Palette, " "))
	}
	return Payload{
		ProductID:   p.ID,
		ProductName: p.Name,
		Locale:      loc,
		RatioName:   ar.Name,
		Width:       ar.Width,
		Height:      ar.Height,
		Prompt:      strings.Join(parts, ", "),
	}
}
