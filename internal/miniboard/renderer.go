package miniboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
)

var ErrNotLoaded = errors.New("game not loaded")

const (
	cellSize    = 24
	minSize     = 16
	maxSize     = 1024
	DefaultSize = 96

	// maxCached bounds finished-board thumbnails kept across all sizes.
	maxCached = 256
)

var (
	boardColor = color.RGBA{220, 179, 92, 255}
	lineColor  = "#3a2a12"
)

// Renderer draws board thumbnails. Finished boards are cached by game,
// move and size since they no longer change; the least recently used
// entry is evicted past maxCached.
type Renderer struct {
	cache *lru.Cache[cacheKey, []byte]
}

type cacheKey struct {
	gameID int64
	move   int
	size   int
}

func NewRenderer() *Renderer {
	cache, err := lru.New[cacheKey, []byte](maxCached)
	if err != nil {
		panic(err)
	}
	return &Renderer{cache: cache}
}

// RenderPNG rasterizes e into a square-celled PNG whose longest side is size pixels.
func (r *Renderer) RenderPNG(ctx context.Context, e gamesession.Engine, size int) ([]byte, error) {
	if !e.Loaded || e.Width <= 0 || e.Height <= 0 {
		return nil, ErrNotLoaded
	}
	size = clampSize(size)
	key := cacheKey{gameID: e.GameID, move: e.GetMoveNumber(), size: size}
	finished := e.Phase == gamesession.PhaseFinished
	if finished {
		if b, ok := r.cache.Get(key); ok {
			return b, nil
		}
	}

	full, err := rasterize(boardSVG(e), e.Width*cellSize, e.Height*cellSize)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	w, h := scaledBounds(e.Width, e.Height, size)
	thumb := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(thumb, thumb.Bounds(), full, full.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	out := buf.Bytes()
	if finished {
		r.cache.Add(key, out)
	}
	return out, nil
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < minSize:
		return minSize
	case size > maxSize:
		return maxSize
	}
	return size
}

func scaledBounds(width, height, size int) (int, int) {
	if width >= height {
		return size, max(1, size*height/width)
	}
	return max(1, size*width/height), size
}

func rasterize(svg string, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(boardColor), image.Point{}, imagedraw.Src)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

// boardSVG lays out grid lines, star points and stones in cell units.
func boardSVG(e gamesession.Engine) string {
	w, h := e.Width*cellSize, e.Height*cellSize
	half := cellSize / 2
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	for x := 0; x < e.Width; x++ {
		cx := x*cellSize + half
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="1"/>`, cx, half, cx, h-half, lineColor)
	}
	for y := 0; y < e.Height; y++ {
		cy := y*cellSize + half
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="1"/>`, half, cy, w-half, cy, lineColor)
	}
	for _, p := range starPoints(e.Width, e.Height) {
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="2.5" fill="%s"/>`, p[0]*cellSize+half, p[1]*cellSize+half, lineColor)
	}
	for y, row := range e.Board {
		for x, s := range row {
			if s == gamesession.Empty {
				continue
			}
			cx, cy := x*cellSize+half, y*cellSize+half
			r := float64(half) - 1
			if removed(e, x, y) {
				r = float64(half) / 3
			}
			fill, stroke := "#111111", "#000000"
			if s == gamesession.White {
				fill, stroke = "#f4f4f4", "#555555"
			}
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%.1f" fill="%s" stroke="%s" stroke-width="1"/>`, cx, cy, r, fill, stroke)
		}
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func removed(e gamesession.Engine, x, y int) bool {
	return y < len(e.Removed) && x < len(e.Removed[y]) && e.Removed[y][x]
}

// starPoints returns hoshi for the square board sizes that have them.
func starPoints(w, h int) [][2]int {
	if w != h {
		return nil
	}
	var edge int
	switch {
	case w >= 13:
		edge = 3
	case w >= 9:
		edge = 2
	default:
		return nil
	}
	far := w - 1 - edge
	pts := [][2]int{{edge, edge}, {far, edge}, {edge, far}, {far, far}}
	if w%2 == 1 {
		mid := w / 2
		pts = append(pts, [2]int{mid, mid})
		if w >= 19 {
			pts = append(pts, [2]int{mid, edge}, [2]int{mid, far}, [2]int{edge, mid}, [2]int{far, mid})
		}
	}
	return pts
}
