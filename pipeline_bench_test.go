package tests

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"creative-pipeline/internal/assembler"
	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/compliance"
)

func BenchmarkScore(b *testing.B) {
	rules, err := compliance.NewRuleSet(nil)
	if err != nil {
		b.Fatal(err)
	}
	scorer := compliance.NewScorer(compliance.Config{}, rules)

	img := image.NewRGBA(image.Rect(0, 0, 1080, 1080))
	for y := 0; y < 1080; y++ {
		for x := 0; x < 1080; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), 80, uint8(y % 256), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatal(err)
	}

	asset := &assembler.Asset{
		Data:        buf.Bytes(),
		Width:       1080,
		Height:      1080,
		ProductID:   "prod-1",
		ProductName: "Glow Serum",
		Locale:      "en-US",
		RatioName:   "1:1",
		Message:     "Glow Serum brings out your natural radiance",
	}
	cb := &brief.CampaignBrief{
		Name:         "bench",
		Products:     []brief.Product{{ID: "prod-1", Name: "Glow Serum"}},
		Locales:      []brief.Locale{"en-US"},
		AspectRatios: []brief.AspectRatio{{Name: "1:1", Width: 1080, Height: 1080}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = scorer.Score(asset, cb)
	}
}
