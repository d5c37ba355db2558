// Package cert rasterizes the shareable certificate for tier-3 results.
// Certificates are immutable per result, so rendered bytes are cached with
// a short TTL and concurrent requests for the same id collapse into one
// render.
package cert

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/singleflight"

	"raven-iq-service/internal/domain"
)

// Template coordinates, carried over from the certificate artwork.
const (
	canvasWidth  = 2000
	canvasHeight = 1700

	nameBaseline   = 900
	scoreBaseline  = 1350
	dateBaseline   = 1485
	serialX        = 495
	serialBaseline = 1635
)

const cacheTTL = 10 * time.Minute

type cachedCert struct {
	data      []byte
	expiresAt time.Time
}

// Renderer draws a result onto the certificate template. A nil template
// path falls back to a plain generated background, which keeps dev setups
// free of binary assets.
type Renderer struct {
	template image.Image

	nameFace   font.Face
	serialFace font.Face
	scoreFace  font.Face
	dateFace   font.Face

	sf    singleflight.Group
	clock func() time.Time

	mu      sync.Mutex
	cache   map[string]cachedCert
	renders int
}

func NewRenderer(templatePath string) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}

	r := &Renderer{
		clock: time.Now,
		cache: make(map[string]cachedCert),
	}
	if r.nameFace, err = newFace(regular, 160); err != nil {
		return nil, err
	}
	if r.serialFace, err = newFace(regular, 55); err != nil {
		return nil, err
	}
	if r.scoreFace, err = newFace(bold, 200); err != nil {
		return nil, err
	}
	if r.dateFace, err = newFace(regular, 75); err != nil {
		return nil, err
	}

	if templatePath != "" {
		f, err := os.Open(templatePath)
		if err != nil {
			return nil, fmt.Errorf("open certificate template: %w", err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode certificate template: %w", err)
		}
		r.template = img
	}
	return r, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build %gpx face: %w", size, err)
	}
	return face, nil
}

// Render returns the certificate JPEG for a result.
func (r *Renderer) Render(result domain.Result) ([]byte, error) {
	now := r.clock()

	r.mu.Lock()
	if entry, ok := r.cache[result.ID]; ok && entry.expiresAt.After(now) {
		r.mu.Unlock()
		return entry.data, nil
	}
	r.mu.Unlock()

	data, err, _ := r.sf.Do(result.ID, func() (interface{}, error) {
		r.mu.Lock()
		if entry, ok := r.cache[result.ID]; ok && entry.expiresAt.After(r.clock()) {
			r.mu.Unlock()
			return entry.data, nil
		}
		r.mu.Unlock()

		raw, err := r.draw(result)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.renders++
		r.cache[result.ID] = cachedCert{data: raw, expiresAt: r.clock().Add(cacheTTL)}
		r.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

func (r *Renderer) draw(result domain.Result) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	if r.template != nil {
		draw.Draw(canvas, canvas.Bounds(), r.template, r.template.Bounds().Min, draw.Src)
	} else {
		draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
		drawBorder(canvas)
		r.drawCentered(canvas, "Certificate of Achievement", r.dateFace, 300)
		r.drawCentered(canvas, "Raven's IQ Test", r.serialFace, 400)
	}

	black := image.NewUniform(color.Black)

	r.drawCentered(canvas, result.UserName, r.nameFace, nameBaseline)
	r.drawCentered(canvas, fmt.Sprintf("%d", result.Score), r.scoreFace, scoreBaseline)

	date := time.Unix(result.SubmitTime, 0).Format("January 2, 2006")
	r.drawCentered(canvas, date, r.dateFace, dateBaseline)

	serial := formatSerial(result.ID)
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  black,
		Face: r.serialFace,
		Dot:  fixed.P(serialX, serialBaseline),
	}
	drawer.DrawString(serial)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCentered(dst draw.Image, text string, face font.Face, baseline int) {
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	width := drawer.MeasureString(text)
	x := (fixed.I(canvasWidth) - width) / 2
	drawer.Dot = fixed.Point26_6{X: x, Y: fixed.I(baseline)}
	drawer.DrawString(text)
}

func drawBorder(canvas *image.RGBA) {
	border := color.RGBA{R: 0x33, G: 0x3c, B: 0x66, A: 0xff}
	const thickness = 12
	const margin = 60
	b := canvas.Bounds().Inset(margin)
	for x := b.Min.X; x < b.Max.X; x++ {
		for t := 0; t < thickness; t++ {
			canvas.Set(x, b.Min.Y+t, border)
			canvas.Set(x, b.Max.Y-1-t, border)
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for t := 0; t < thickness; t++ {
			canvas.Set(b.Min.X+t, y, border)
			canvas.Set(b.Max.X-1-t, y, border)
		}
	}
}

// formatSerial groups the 12-digit id as three blocks of four.
func formatSerial(id string) string {
	if len(id) != 12 {
		return id
	}
	return id[:4] + " " + id[4:8] + " " + id[8:]
}
