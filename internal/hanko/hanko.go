// Package hanko renders circular vermilion name seals as PNG images. The
// seal is stamped onto the first page of rendered order documents and is
// also served directly for previewing.
package hanko

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrNameLength is returned when the seal name is empty or longer than the
// four characters a round seal can hold.
var ErrNameLength = errors.New("hanko: seal name must be 1 to 4 characters")

// Shuniro, the traditional vermilion of seal ink.
var defaultInk = color.RGBA{R: 0xEA, G: 0x33, B: 0x23, A: 0xFF}

const defaultCanvasPx = 300

// Option customises the seal generator.
type Option func(*Generator)

// WithSize sets the square canvas edge in pixels.
func WithSize(px int) Option {
	return func(g *Generator) {
		if px > 0 {
			g.size = px
		}
	}
}

// WithInk overrides the seal colour.
func WithInk(c color.RGBA) Option {
	return func(g *Generator) {
		g.ink = c
	}
}

// Generator draws name seals with a shared glyph resource. It is safe for
// concurrent use; each Seal call builds its own face.
type Generator struct {
	logger zerolog.Logger
	font   *sfnt.Font
	size   int
	ink    color.RGBA
}

// New parses the TrueType data once and returns a seal generator. The same
// glyph resource that backs the document renderer works here.
func New(fontData []byte, logger zerolog.Logger, opts ...Option) (*Generator, error) {
	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("hanko: parse font: %w", err)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	g := &Generator{
		logger: logger,
		font:   parsed,
		size:   defaultCanvasPx,
		ink:    defaultInk,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Seal renders the given name inside a vermilion ring and returns the PNG
// bytes. The background is transparent so the stamp overlays cleanly.
func (g *Generator) Seal(name string) ([]byte, error) {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) < 1 || len(runes) > 4 {
		return nil, fmt.Errorf("%w: got %d", ErrNameLength, len(runes))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, g.size, g.size))
	g.drawRing(canvas)
	if err := g.drawName(canvas, runes); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("hanko: encode: %w", err)
	}

	g.logger.Debug().
		Str("name", string(runes)).
		Int("bytes", buf.Len()).
		Msg("seal rendered")
	return buf.Bytes(), nil
}

func (g *Generator) drawRing(canvas *image.RGBA) {
	center := float64(g.size) / 2
	outer := center - float64(g.size)/50
	border := float64(g.size) / 25
	if border < 2 {
		border = 2
	}
	inner := outer - border

	for y := 0; y < g.size; y++ {
		for x := 0; x < g.size; x++ {
			dx := float64(x) + 0.5 - center
			dy := float64(y) + 0.5 - center
			d2 := dx*dx + dy*dy
			if d2 <= outer*outer && d2 >= inner*inner {
				canvas.SetRGBA(x, y, g.ink)
			}
		}
	}
}

// drawName places the glyphs the way a carved seal reads: one or two
// characters stack in a single column, three or four run top-to-bottom in
// columns read right to left.
func (g *Generator) drawName(canvas *image.RGBA, runes []rune) error {
	s := float64(g.size)

	var ppem float64
	var centers []fixed.Point26_6
	at := func(fx, fy float64) fixed.Point26_6 {
		return fixed.Point26_6{X: toFixed(fx * s), Y: toFixed(fy * s)}
	}

	switch len(runes) {
	case 1:
		ppem = 0.52 * s
		centers = []fixed.Point26_6{at(0.50, 0.50)}
	case 2:
		ppem = 0.34 * s
		centers = []fixed.Point26_6{at(0.50, 0.30), at(0.50, 0.70)}
	case 3:
		ppem = 0.30 * s
		centers = []fixed.Point26_6{at(0.66, 0.30), at(0.66, 0.70), at(0.34, 0.50)}
	case 4:
		ppem = 0.30 * s
		centers = []fixed.Point26_6{at(0.66, 0.30), at(0.66, 0.70), at(0.34, 0.30), at(0.34, 0.70)}
	}

	face, err := opentype.NewFace(g.font, &opentype.FaceOptions{
		Size:    ppem,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("hanko: face at %.0fpx: %w", ppem, err)
	}
	defer face.Close()

	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(g.ink),
		Face: face,
	}

	for i, r := range runes {
		glyph := string(r)
		bounds, _ := font.BoundString(face, glyph)
		boxCenter := fixed.Point26_6{
			X: (bounds.Min.X + bounds.Max.X) / 2,
			Y: (bounds.Min.Y + bounds.Max.Y) / 2,
		}
		drawer.Dot = fixed.Point26_6{
			X: centers[i].X - boxCenter.X,
			Y: centers[i].Y - boxCenter.Y,
		}
		drawer.DrawString(glyph)
	}
	return nil
}

func toFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}
