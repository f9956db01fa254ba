package compliance

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func displayableColorModel(img image.Image) bool {
	switch img.ColorModel() {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.YCbCrModel:
		return true
	}
	return false
}

type rgb struct{ r, g, b int }

// parseHex parses "#rrggbb"; malformed entries are skipped, matching how
// the brand palette is treated as advisory input.
func parseHex(s string) (rgb, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") || len(s) != 7 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}

// paletteCoverage samples the image on a fixed grid and returns the
// fraction of sampled pixels within tolerance (summed channel distance) of
// any brand color. Sampling is deterministic.
func paletteCoverage(img image.Image, palette []string, tolerance int) float64 {
	colors := make([]rgb, 0, len(palette))
	for _, p := range palette {
		if c, ok := parseHex(p); ok {
			colors = append(colors, c)
		}
	}
	if len(colors) == 0 {
		return 1 // no usable palette, treat as compatible
	}

	b := img.Bounds()
	const grid = 32
	stepX := b.Dx() / grid
	stepY := b.Dy() / grid
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	sampled, hits := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			px := rgb{int(r >> 8), int(g >> 8), int(bl >> 8)}
			sampled++
			for _, c := range colors {
				if abs(px.r-c.r)+abs(px.g-c.g)+abs(px.b-c.b) <= tolerance {
					hits++
					break
				}
			}
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(hits) / float64(sampled)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
