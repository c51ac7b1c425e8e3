package captcha

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 120
	Height = 40

	glyphSize   = 26
	maxRotation = 30 * math.Pi / 180
	maxJitter   = 4
	tilePad     = 4

	noiseLines  = 5
	noisePoints = 60
	noiseBlocks = 8

	FontSourceBitmap = "basicfont"
	FontSourceGoBold = "gobold"
)

// Renderer рисует код искаженными символами с шумом и кодирует PNG в base64.
// Безопасен для конкурентного использования: face создается на каждый вызов.
type Renderer struct {
	newFace func() font.Face
	// scale увеличивает растровый шрифт 7x13 до читаемого размера
	scale  float64
	source string
}

// NewRenderer выбирает шрифт: файл fontPath, затем встроенный Go Bold,
// затем растровый basicfont. Ошибки загрузки только логируются.
func NewRenderer(fontPath string, log *zap.Logger) *Renderer {
	if fontPath != "" {
		newFace, err := loadFontFile(fontPath)
		if err == nil {
			return &Renderer{newFace: newFace, scale: 1, source: fontPath}
		}
		log.Warn("Не удалось загрузить шрифт капчи, используется встроенный",
			zap.String("path", fontPath), zap.Error(err))
	}

	newFace, err := parseFont(gobold.TTF)
	if err == nil {
		return &Renderer{newFace: newFace, scale: 1, source: FontSourceGoBold}
	}
	log.Error("Встроенный шрифт Go Bold недоступен, используется растровый", zap.Error(err))

	return &Renderer{
		newFace: func() font.Face { return basicfont.Face7x13 },
		scale:   2,
		source:  FontSourceBitmap,
	}
}

// Source возвращает выбранный источник шрифта
func (r *Renderer) Source() string {
	return r.source
}

func loadFontFile(path string) (func() font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFont(data)
}

func parseFont(data []byte) (func() font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	opts := &opentype.FaceOptions{Size: glyphSize, DPI: 72, Hinting: font.HintingFull}
	// проверяем опции один раз, дальше NewFace с ними не падает
	probe, err := opentype.NewFace(f, opts)
	if err != nil {
		return nil, err
	}
	_ = probe.Close()

	return func() font.Face {
		face, err := opentype.NewFace(f, opts)
		if err != nil {
			return basicfont.Face7x13
		}
		return face
	}, nil
}

// Render возвращает base64 PNG размером Width×Height
func (r *Renderer) Render(code string) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(randomColor(235, 255)), image.Point{}, draw.Src)

	for i := 0; i < noisePoints; i++ {
		img.Set(rand.IntN(Width), rand.IntN(Height), randomColor(150, 230))
	}

	face := r.newFace()
	defer face.Close()

	chars := []rune(code)
	if len(chars) > 0 {
		slot := float64(Width) / float64(len(chars))
		for i, ch := range chars {
			cx := slot*float64(i) + slot/2 + jitter(2)
			cy := float64(Height)/2 + jitter(maxJitter)
			r.drawGlyph(img, face, ch, cx, cy)
		}
	}

	for i := 0; i < noiseLines; i++ {
		drawLine(img,
			rand.IntN(Width), rand.IntN(Height),
			rand.IntN(Width), rand.IntN(Height),
			randomColor(160, 220))
	}
	for i := 0; i < noiseBlocks; i++ {
		x, y := rand.IntN(Width-3), rand.IntN(Height-3)
		size := 2 + rand.IntN(2)
		block := image.Rect(x, y, x+size, y+size)
		draw.Draw(img, block, image.NewUniform(randomColor(170, 230)), image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode captcha png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// drawGlyph рисует символ на отдельной плитке и переносит ее на холст
// с поворотом вокруг центра (cx, cy).
func (r *Renderer) drawGlyph(dst *image.RGBA, face font.Face, ch rune, cx, cy float64) {
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()
	advance := font.MeasureString(face, string(ch)).Ceil()

	tile := image.NewRGBA(image.Rect(0, 0, advance+2*tilePad, ascent+descent+2*tilePad))
	d := font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(randomColor(0, 100)),
		Face: face,
		Dot:  fixed.P(tilePad, tilePad+ascent),
	}
	d.DrawString(string(ch))

	theta := (rand.Float64()*2 - 1) * maxRotation
	cos, sin := math.Cos(theta)*r.scale, math.Sin(theta)*r.scale
	sx, sy := float64(tile.Bounds().Dx())/2, float64(tile.Bounds().Dy())/2

	m := f64.Aff3{
		cos, -sin, cx - cos*sx + sin*sy,
		sin, cos, cy - sin*sx - cos*sy,
	}
	draw.BiLinear.Transform(dst, m, tile, tile.Bounds(), draw.Over, nil)
}

// drawLine - линия Брезенхэма
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func randomColor(lo, hi int) color.RGBA {
	ch := func() uint8 { return uint8(lo + rand.IntN(hi-lo)) }
	return color.RGBA{R: ch(), G: ch(), B: ch(), A: 255}
}

func jitter(n int) float64 {
	return float64(rand.IntN(2*n+1) - n)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
