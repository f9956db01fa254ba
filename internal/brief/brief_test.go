package brief

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBrief() CampaignBrief {
	return CampaignBrief{
		Name:           "Summer Launch",
		TargetAudience: "young professionals",
		Products: []Product{
			{ID: "p1", Name: "Glow Serum", Messages: map[Locale]string{"en-US": "Shine bright"}},
		},
		Locales:      []Locale{"en-US"},
		AspectRatios: []AspectRatio{{Name: "1:1", Width: 1080, Height: 1080}},
	}
}

func TestCampaignBrief_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CampaignBrief)
		wantErr string
	}{
		{"valid", func(b *CampaignBrief) {}, ""},
		{"missing name", func(b *CampaignBrief) { b.Name = " " }, "campaign name is required"},
		{"no products", func(b *CampaignBrief) { b.Products = nil }, "at least one product"},
		{"no locales", func(b *CampaignBrief) { b.Locales = nil }, "at least one locale"},
		{"no ratios", func(b *CampaignBrief) { b.AspectRatios = nil }, "at least one aspect ratio"},
		{
			"duplicate product",
			func(b *CampaignBrief) { b.Products = append(b.Products, Product{ID: "p1", Name: "Again"}) },
			`duplicate product id "p1"`,
		},
		{
			"duplicate locale differs only by case",
			func(b *CampaignBrief) { b.Locales = append(b.Locales, "EN-us") },
			"duplicate locale",
		},
		{
			"duplicate ratio",
			func(b *CampaignBrief) {
				b.AspectRatios = append(b.AspectRatios, AspectRatio{Name: "1:1", Width: 500, Height: 500})
			},
			"duplicate aspect ratio",
		},
		{
			"non-positive dimensions",
			func(b *CampaignBrief) { b.AspectRatios[0].Height = 0 },
			"positive dimensions",
		},
		{
			"product without id",
			func(b *CampaignBrief) { b.Products[0].ID = "" },
			"must have id and name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBrief()
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProduct_MessageFor_CaseInsensitive(t *testing.T) {
	p := Product{
		ID:   "p1",
		Name: "Glow Serum",
		Messages: map[Locale]string{
			"en-US": "Shine bright",
			"ja-JP": "自然な輝きを",
		},
	}

	tests := []struct {
		name   string
		loc    Locale
		want   string
		wantOK bool
	}{
		{"exact", "en-US", "Shine bright", true},
		{"lowercase tag", "en-us", "Shine bright", true},
		{"uppercase tag", "EN-US", "Shine bright", true},
		{"mixed case", "Ja-jP", "自然な輝きを", true},
		{"unknown", "de-DE", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.MessageFor(tt.loc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProduct_SubstituteMessage_CaseInsensitive(t *testing.T) {
	p := Product{
		ID:       "p1",
		Name:     "Glow Serum",
		Messages: map[Locale]string{"en-US": "Shine bright"},
	}

	// Declared tags differ in case from the message keys; substitution must
	// still find the entry instead of reporting a missing message.
	msg, from, ok := p.SubstituteMessage([]Locale{"EN-us"})
	require.True(t, ok)
	assert.Equal(t, "Shine bright", msg)
	assert.Equal(t, Locale("EN-us"), from)
}

func TestProduct_SubstituteMessage(t *testing.T) {
	p := Product{
		ID:   "p1",
		Name: "Glow Serum",
		Messages: map[Locale]string{
			"de-DE": "Strahle natürlich",
			"en-US": "Shine bright",
		},
	}

	// First declared locale with an entry wins, not map order.
	msg, from, ok := p.SubstituteMessage([]Locale{"fr-FR", "en-US", "de-DE"})
	require.True(t, ok)
	assert.Equal(t, "Shine bright", msg)
	assert.Equal(t, Locale("en-US"), from)

	_, _, ok = Product{ID: "p2", Name: "Bare"}.SubstituteMessage([]Locale{"en-US"})
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "brief.yaml")
	require.NoError(t, os.WriteFile(good, []byte(strings.TrimSpace(`
campaign_name: "Summer Launch"
target_audience: "young professionals"
products:
  - id: "p1"
    name: "Glow Serum"
    messages:
      en-US: "Shine bright"
locales: ["en-US", "ja-JP"]
aspect_ratios:
  - {name: "1:1", width: 1080, height: 1080}
brand_guidelines:
  color_palette: ["#ff0000"]
  style: "clean"
`)), 0o644))

	b, err := LoadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "Summer Launch", b.Name)
	assert.Len(t, b.Locales, 2)
	assert.Equal(t, []string{"#ff0000"}, b.Guidelines.Palette)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("campaign_name: x\nunknown_field: y\n"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err, "unknown fields must be rejected")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
