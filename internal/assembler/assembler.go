package assembler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	_ "image/jpeg" // raw images may arrive JPEG-encoded

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/provider"
)

// Config bounds the overlay.
type Config struct {
	// MaxOverlayFraction caps how much of the image area the message band
	// may cover.
	MaxOverlayFraction float64
}

// Asset is a finished, overlay-applied creative. Immutable once scored.
type Asset struct {
	Data   []byte // PNG encoded
	Width  int
	Height int

	ProductID   string
	ProductName string
	Locale      brief.Locale
	RatioName   string

	Message         string
	MessageLocale   brief.Locale
	LocalizationGap bool
	LogoApplied     bool

	Provider  string
	Variant   provider.Variant
	OutputRef string
}

// Assemble crops and resizes the raw image to the target aspect ratio and
// applies the localized message and logo overlay. Given the same raw image
// and parameters the output bytes are identical.
func Assemble(raw *provider.RawImage, p brief.Product, loc brief.Locale, ar brief.AspectRatio, b *brief.CampaignBrief, cfg Config) (*Asset, error) {
	src, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("decode raw image: %w", err)
	}

	canvas := scaleToRatio(src, ar.Width, ar.Height)

	msg, msgLoc, gap := resolveMessage(p, loc, b.Locales)
	if gap {
		log.Warn().Str("product", p.ID).Str("locale", string(loc)).
			Str("substituted", string(msgLoc)).Msg("localized message missing; substituting")
	}

	maxFraction := cfg.MaxOverlayFraction
	if maxFraction <= 0 {
		maxFraction = 0.25
	}
	drawMessageBand(canvas, msg, ar, maxFraction)

	logoApplied := false
	if p.LogoRef != "" {
		if logo := loadLogo(p.LogoRef); logo != nil {
			drawLogo(canvas, logo)
			logoApplied = true
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode asset: %w", err)
	}

	return &Asset{
		Data:            buf.Bytes(),
		Width:           ar.Width,
		Height:          ar.Height,
		ProductID:       p.ID,
		ProductName:     p.Name,
		Locale:          loc,
		RatioName:       ar.Name,
		Message:         msg,
		MessageLocale:   msgLoc,
		LocalizationGap: gap,
		LogoApplied:     logoApplied,
		Provider:        raw.Provider,
		Variant:         raw.Variant,
		OutputRef:       outputRef(p.ID, loc, ar.Name),
	}, nil
}

func outputRef(productID string, loc brief.Locale, ratioName string) string {
	clean := func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), " ", "_") }
	return fmt.Sprintf("%s_%s_%s_final.png", clean(productID), clean(loc.Normalized()), clean(ratioName))
}

// resolveMessage picks the localized message, substituting the first
// declared locale's entry when the requested one is missing. A product with
// no messages at all falls back to its display name.
func resolveMessage(p brief.Product, loc brief.Locale, declared []brief.Locale) (string, brief.Locale, bool) {
	if m, ok := p.MessageFor(loc); ok {
		return m, loc, false
	}
	if m, from, ok := p.SubstituteMessage(declared); ok {
		return m, from, true
	}
	return p.Name, loc, true
}

// scaleToRatio center-crops src to the target aspect ratio, then scales
// uniformly to the exact output dimensions. Never stretches.
func scaleToRatio(src image.Image, w, h int) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	// Largest centered rect in src with the target ratio.
	cw, ch := sw, sh
	if sw*h > sh*w {
		cw = sh * w / h
	} else {
		ch = sw * h / w
	}
	x0 := sb.Min.X + (sw-cw)/2
	y0 := sb.Min.Y + (sh-ch)/2
	crop := image.Rect(x0, y0, x0+cw, y0+ch)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Over, nil)
	return dst
}

// drawMessageBand renders the key message in a translucent band along the
// bottom edge. Band height is capped so the overlay never covers more than
// maxFraction of the image area.
func drawMessageBand(dst *image.RGBA, msg string, ar brief.AspectRatio, maxFraction float64) {
	if msg == "" {
		return
	}
	w, h := ar.Width, ar.Height

	// The 24px floor keeps text legible, but the area bound always wins.
	bandH := h / 6
	if bandH < 24 {
		bandH = 24
	}
	if limit := int(float64(h) * maxFraction); bandH > limit {
		bandH = limit
	}
	band := image.Rect(0, h-bandH, w, h)
	draw.Draw(dst, band, &image.Uniform{color.NRGBA{0, 0, 0, 140}}, image.Point{}, draw.Over)

	face := basicfont.Face7x13
	baseline := h - bandH/2 + face.Height/3
	x := 24

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{0, 0, 0, 200}),
		Face: face,
		Dot:  fixed.P(x+1, baseline+1),
	}
	d.DrawString(msg) // shadow
	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(msg)
}

// drawLogo scales the logo into the top-right corner at 10% of the canvas
// width.
func drawLogo(dst *image.RGBA, logo image.Image) {
	b := dst.Bounds()
	lw := b.Dx() / 10
	if lw < 16 {
		lw = 16
	}
	lb := logo.Bounds()
	lh := lw * lb.Dy() / lb.Dx()
	margin := b.Dx() / 50
	target := image.Rect(b.Max.X-margin-lw, b.Min.Y+margin, b.Max.X-margin, b.Min.Y+margin+lh)
	xdraw.ApproxBiLinear.Scale(dst, target, logo, lb, xdraw.Over, nil)
}

func loadLogo(ref string) image.Image {
	f, err := os.Open(ref)
	if err != nil {
		log.Debug().Str("logo", ref).Err(err).Msg("logo not available; skipping overlay")
		return nil
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		log.Debug().Str("logo", ref).Err(err).Msg("logo not decodable; skipping overlay")
		return nil
	}
	return img
}
