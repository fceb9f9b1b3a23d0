package trackplot

import (
	"errors"
	"testing"
	"time"
)

// diagonalTrack builds n samples walking northeast from a Helsinki origin.
func diagonalTrack(n int) []Sample {
	base := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Latitude:  60.1699 + float64(i)*0.0004,
			Longitude: 24.9384 + float64(i)*0.0006,
			Accuracy:  12,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return samples
}

func TestRenderDefaultsSize(t *testing.T) {
	img, err := Render(diagonalTrack(10), Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 800 || bounds.Dy() != 600 {
		t.Fatalf("canvas = %dx%d, want 800x600", bounds.Dx(), bounds.Dy())
	}
	// The background is painted, not left transparent.
	if c := img.RGBAAt(0, 0); c.A != 255 {
		t.Errorf("corner pixel alpha = %d, want 255", c.A)
	}
}

func TestRenderCustomSize(t *testing.T) {
	img, err := Render(diagonalTrack(10), Options{Width: 320, Height: 240})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if bounds := img.Bounds(); bounds.Dx() != 320 || bounds.Dy() != 240 {
		t.Fatalf("canvas = %dx%d, want 320x240", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderNoSamples(t *testing.T) {
	if _, err := Render(nil, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("Render() error = %v, want %v", err, ErrNoSamples)
	}
}

func TestRenderTinyCanvasRejected(t *testing.T) {
	if _, err := Render(diagonalTrack(3), Options{Width: 60, Height: 60}); err == nil {
		t.Fatal("Render() succeeded on a canvas smaller than the margins")
	}
}

func TestRenderDrawsTrackAndMarkers(t *testing.T) {
	img, err := Render(diagonalTrack(30), Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var track, start, end int
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			switch img.RGBAAt(x, y) {
			case trackColor:
				track++
			case startColor:
				start++
			case endColor:
				end++
			}
		}
	}

	// A 30 sample diagonal crosses a few hundred pixels.
	if track < 100 {
		t.Errorf("track pixels = %d, want at least 100", track)
	}
	if start == 0 {
		t.Error("no start marker pixels")
	}
	if end == 0 {
		t.Error("no end marker pixels")
	}
}

func TestRenderSinglePointCentered(t *testing.T) {
	img, err := Render(diagonalTrack(1), Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	// Start and end coincide; the end marker is drawn last.
	if c := img.RGBAAt(400, 300); c != endColor {
		t.Fatalf("center pixel = %v, want the end marker color %v", c, endColor)
	}
}

func TestRenderCaption(t *testing.T) {
	samples := diagonalTrack(5)
	plain, err := Render(samples, Options{})
	if err != nil {
		t.Fatalf("Render() without caption error: %v", err)
	}
	titled, err := Render(samples, Options{Caption: "5 samples"})
	if err != nil {
		t.Fatalf("Render() with caption error: %v", err)
	}

	// The caption strip along the bottom edge must differ from the plain
	// render; nothing else changes.
	diff := 0
	bounds := titled.Bounds()
	for y := bounds.Max.Y - 2*captionInset; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if titled.RGBAAt(x, y) != plain.RGBAAt(x, y) {
				diff++
			}
		}
	}
	if diff == 0 {
		t.Fatal("caption changed no pixels in the bottom strip")
	}

	for y := bounds.Min.Y; y < bounds.Max.Y/2; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if titled.RGBAAt(x, y) != plain.RGBAAt(x, y) {
				t.Fatalf("caption changed pixel (%d, %d) in the top half", x, y)
			}
		}
	}
}

func TestProjectKeepsTrackInsideMargins(t *testing.T) {
	pts := project(diagonalTrack(50), 800, 600)
	for i, p := range pts {
		if p.X < margin || p.X > 800-margin || p.Y < margin || p.Y > 600-margin {
			t.Fatalf("point %d = %v, outside the %dpx margin box", i, p, margin)
		}
	}

	// North is up: the last (northernmost) sample lands above the first.
	if pts[len(pts)-1].Y >= pts[0].Y {
		t.Errorf("northernmost point y = %d, not above the start y = %d", pts[len(pts)-1].Y, pts[0].Y)
	}
	// East is right.
	if pts[len(pts)-1].X <= pts[0].X {
		t.Errorf("easternmost point x = %d, not right of the start x = %d", pts[len(pts)-1].X, pts[0].X)
	}
}
