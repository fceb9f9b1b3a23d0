// Package trackplot renders a recorded track to an image: the path as a
// polyline over a shaded canvas, endpoint markers, and a caption set in Go
// Regular. Rendering is pure; callers decide where the bytes go.
package trackplot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Sample is one recorded position.
type Sample struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Options controls the rendered image. Zero values select the defaults.
type Options struct {
	// Width and Height set the canvas size in pixels.
	Width  int
	Height int

	// Caption is drawn along the bottom edge when non-empty.
	Caption string
}

const (
	defaultWidth  = 800
	defaultHeight = 600
	margin        = 48
	captionInset  = 16
	markerRadius  = 5
	fontSize      = 14
)

var (
	trackColor   = color.RGBA{86, 197, 255, 255}
	startColor   = color.RGBA{80, 220, 120, 255}
	endColor     = color.RGBA{255, 99, 99, 255}
	captionColor = color.RGBA{235, 238, 245, 255}
)

// ErrNoSamples is returned when there is nothing to draw.
var ErrNoSamples = errors.New("trackplot: no samples")

// Render draws the track and returns the finished canvas. The first sample
// gets the green marker, the last the red one.
func Render(samples []Sample, opts Options) (*image.RGBA, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if width < 2*margin+16 || height < 2*margin+16 {
		return nil, fmt.Errorf("trackplot: canvas %dx%d is too small", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawBackground(img)

	pts := project(samples, width, height)
	for i := 1; i < len(pts); i++ {
		drawLine(img, pts[i-1], pts[i], trackColor)
	}
	drawMarker(img, pts[0], startColor)
	drawMarker(img, pts[len(pts)-1], endColor)

	if opts.Caption != "" {
		if err := drawCaption(img, opts.Caption); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// project maps samples onto canvas pixels: equirectangular with the
// longitude axis corrected for the track's mid latitude, scaled to fit the
// margin box, north up.
func project(samples []Sample, width, height int) []image.Point {
	minLat, maxLat := samples[0].Latitude, samples[0].Latitude
	minLon, maxLon := samples[0].Longitude, samples[0].Longitude
	for _, s := range samples[1:] {
		minLat = math.Min(minLat, s.Latitude)
		maxLat = math.Max(maxLat, s.Latitude)
		minLon = math.Min(minLon, s.Longitude)
		maxLon = math.Max(maxLon, s.Longitude)
	}

	lonScale := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	spanX := (maxLon - minLon) * lonScale
	spanY := maxLat - minLat

	boxW := float64(width - 2*margin)
	boxH := float64(height - 2*margin)

	var scale float64
	switch {
	case spanX == 0 && spanY == 0:
	case spanX == 0:
		scale = boxH / spanY
	case spanY == 0:
		scale = boxW / spanX
	default:
		scale = math.Min(boxW/spanX, boxH/spanY)
	}

	pts := make([]image.Point, len(samples))
	for i, s := range samples {
		x := (s.Longitude - minLon) * lonScale * scale
		y := (s.Latitude - minLat) * scale
		px := float64(margin) + (boxW-spanX*scale)/2 + x
		py := float64(height-margin) - (boxH-spanY*scale)/2 - y
		pts[i] = image.Point{X: int(math.Round(px)), Y: int(math.Round(py))}
	}
	return pts
}

func drawBackground(img *image.RGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		ratio := float64(y) / float64(bounds.Max.Y)
		c := color.RGBA{
			R: uint8(16 + ratio*14),
			G: uint8(20 + ratio*20),
			B: uint8(34 + ratio*30),
			A: 255,
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawLine paints a one pixel segment between a and b.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		img.Set(x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func drawMarker(img *image.RGBA, p image.Point, c color.RGBA) {
	for dy := -markerRadius; dy <= markerRadius; dy++ {
		for dx := -markerRadius; dx <= markerRadius; dx++ {
			if dx*dx+dy*dy <= markerRadius*markerRadius {
				img.Set(p.X+dx, p.Y+dy, c)
			}
		}
	}
}

func drawCaption(img *image.RGBA, caption string) error {
	parsed, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return fmt.Errorf("trackplot: parsing font: %w", err)
	}
	face := truetype.NewFace(parsed, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(captionColor),
		Face: face,
	}
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(captionInset),
		Y: fixed.I(img.Bounds().Dy() - captionInset),
	}
	drawer.DrawString(caption)
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
