package assembler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/provider"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func rawImage(t *testing.T, w, h int) *provider.RawImage {
	return &provider.RawImage{
		Data:     pngBytes(t, w, h),
		MIME:     "image/png",
		Provider: "gemini",
		Variant:  provider.VariantPrimary,
	}
}

func testBrief() *brief.CampaignBrief {
	return &brief.CampaignBrief{
		Name:    "test",
		Locales: []brief.Locale{"en-US", "ja-JP"},
		AspectRatios: []brief.AspectRatio{
			{Name: "1:1", Width: 400, Height: 400},
			{Name: "9:16", Width: 360, Height: 640},
		},
	}
}

func TestAssemble_ExactDimensions(t *testing.T) {
	p := brief.Product{ID: "p1", Name: "Glow Serum",
		Messages: map[brief.Locale]string{"en-US": "Shine bright with Glow Serum"}}
	b := testBrief()

	for _, ar := range b.AspectRatios {
		// Source dimensions deliberately off-ratio to force a crop.
		asset, err := Assemble(rawImage(t, 500, 300), p, "en-US", ar, b, Config{})
		require.NoError(t, err)

		img, _, err := image.Decode(bytes.NewReader(asset.Data))
		require.NoError(t, err)
		assert.Equal(t, ar.Width, img.Bounds().Dx(), ar.Name)
		assert.Equal(t, ar.Height, img.Bounds().Dy(), ar.Name)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	p := brief.Product{ID: "p1", Name: "Glow Serum",
		Messages: map[brief.Locale]string{"en-US": "Shine bright with Glow Serum"}}
	b := testBrief()
	ar := b.AspectRatios[0]

	first, err := Assemble(rawImage(t, 500, 300), p, "en-US", ar, b, Config{})
	require.NoError(t, err)
	second, err := Assemble(rawImage(t, 500, 300), p, "en-US", ar, b, Config{})
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data, "same inputs must produce identical bytes")
}

func TestAssemble_LocalizationGap(t *testing.T) {
	p := brief.Product{ID: "p1", Name: "Glow Serum",
		Messages: map[brief.Locale]string{"en-US": "Shine bright with Glow Serum"}}
	b := testBrief()

	asset, err := Assemble(rawImage(t, 400, 400), p, "ja-JP", b.AspectRatios[0], b, Config{})
	require.NoError(t, err)

	assert.True(t, asset.LocalizationGap)
	assert.Equal(t, brief.Locale("en-US"), asset.MessageLocale)
	assert.Equal(t, "Shine bright with Glow Serum", asset.Message)

	// Product with no messages at all falls back to its display name.
	bare := brief.Product{ID: "p2", Name: "Hydra Mist"}
	asset, err = Assemble(rawImage(t, 400, 400), bare, "ja-JP", b.AspectRatios[0], b, Config{})
	require.NoError(t, err)
	assert.True(t, asset.LocalizationGap)
	assert.Equal(t, "Hydra Mist", asset.Message)
}

func TestAssemble_MixedCaseLocaleFindsMessage(t *testing.T) {
	p := brief.Product{ID: "p1", Name: "Glow Serum",
		Messages: map[brief.Locale]string{"en-US": "Shine bright with Glow Serum"}}
	b := testBrief()

	// Brief tags only differ in case from the message key; that is the same
	// locale, not a localization gap.
	asset, err := Assemble(rawImage(t, 400, 400), p, "en-us", b.AspectRatios[0], b, Config{})
	require.NoError(t, err)
	assert.False(t, asset.LocalizationGap)
	assert.Equal(t, "Shine bright with Glow Serum", asset.Message)
	assert.Equal(t, brief.Locale("en-us"), asset.MessageLocale)
}

func TestAssemble_CarriesProvenance(t *testing.T) {
	p := brief.Product{ID: "p1", Name: "Glow Serum",
		Messages: map[brief.Locale]string{"en-US": "Shine bright"}}
	b := testBrief()

	raw := rawImage(t, 400, 400)
	raw.Provider = "stability"
	raw.Variant = provider.VariantSecondary

	asset, err := Assemble(raw, p, "en-US", b.AspectRatios[0], b, Config{})
	require.NoError(t, err)
	assert.Equal(t, "stability", asset.Provider)
	assert.Equal(t, provider.VariantSecondary, asset.Variant)
	assert.Equal(t, "p1_en-us_1:1_final.png", asset.OutputRef)
	assert.False(t, asset.LogoApplied)
}

func TestAssemble_RejectsUndecodableInput(t *testing.T) {
	raw := &provider.RawImage{Data: []byte("not an image"), MIME: "image/png"}
	b := testBrief()
	_, err := Assemble(raw, brief.Product{ID: "p1", Name: "X"}, "en-US", b.AspectRatios[0], b, Config{})
	assert.Error(t, err)
}

func TestDrawMessageBand_FractionBoundsShortOutputs(t *testing.T) {
	// 80px tall at 0.25 allows a 20px band, below the 24px legibility floor;
	// the area bound must win.
	ar := brief.AspectRatio{Name: "banner", Width: 320, Height: 80}
	dst := image.NewRGBA(image.Rect(0, 0, ar.Width, ar.Height))
	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < ar.Height; y++ {
		for x := 0; x < ar.Width; x++ {
			dst.Set(x, y, white)
		}
	}

	drawMessageBand(dst, "Glow Serum", ar, 0.25)

	// x=5 sits left of the text inset, so only the band tint can touch it.
	assert.Equal(t, white, dst.RGBAAt(5, 59), "row above the 20px band must stay untouched")
	assert.NotEqual(t, white, dst.RGBAAt(5, 70), "row inside the band must be tinted")
}

func TestScaleToRatio_NeverStretches(t *testing.T) {
	// Wide source into a square: the crop must come from the center.
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			c := color.RGBA{255, 0, 0, 255} // left/right thirds red
			if x >= 100 && x < 200 {
				c = color.RGBA{0, 255, 0, 255} // center third green
			}
			src.Set(x, y, c)
		}
	}

	dst := scaleToRatio(src, 100, 100)
	assert.Equal(t, 100, dst.Bounds().Dx())
	assert.Equal(t, 100, dst.Bounds().Dy())

	r, g, _, _ := dst.At(50, 50).RGBA()
	assert.True(t, g > r, "center of output should come from the green center crop")
}
