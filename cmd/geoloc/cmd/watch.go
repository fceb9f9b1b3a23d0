package cmd

import (
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-drift/geolocator/cmd/geoloc/internal/config"
	"github.com/go-drift/geolocator/cmd/geoloc/internal/trackplot"
	"github.com/go-drift/geolocator/pkg/geolocator"
)

// watchTailLimit bounds the in-memory track kept for --plot.
const watchTailLimit = 4096

func init() {
	RegisterCommand(&Command{
		Name:  "watch",
		Short: "Stream position updates",
		Long: `Start a listening session and print every position update.

The session runs until --count updates arrive or the process is
interrupted. With --plot, the collected track is rendered to a PNG when
the session ends; only a bounded in-memory tail is kept, nothing else is
persisted.

Flags:
  --interval DURATION   Minimum time between updates (default: 1s)
  --threshold METERS    Minimum movement between updates (default: 0)
  --count N             Stop after N updates (default: unlimited)
  --plot FILE           Render the track to FILE as PNG on exit
  --accuracy METERS     Desired accuracy in meters (default: 100)
  --source SOURCE       Sensor source: sim or remote (default: sim)`,
		Usage: "geoloc watch [--interval 1s] [--threshold 0] [--count N] [--plot out.png]",
		Run:   runWatch,
	})
}

func runWatch(args []string) error {
	cfg, err := config.ResolveDefault()
	if err != nil {
		return err
	}

	interval := cfg.Interval
	threshold := cfg.Threshold
	accuracy := cfg.Accuracy
	source := cfg.Source
	count := 0
	plotPath := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--interval":
			if i+1 >= len(args) {
				return fmt.Errorf("--interval requires a duration")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --interval %q: %w", args[i+1], err)
			}
			interval = d
			i++
		case "--threshold":
			if i+1 >= len(args) {
				return fmt.Errorf("--threshold requires a value in meters")
			}
			v, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				return fmt.Errorf("invalid --threshold %q: %w", args[i+1], err)
			}
			threshold = v
			i++
		case "--count":
			if i+1 >= len(args) {
				return fmt.Errorf("--count requires a number")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid --count %q", args[i+1])
			}
			count = n
			i++
		case "--plot":
			if i+1 >= len(args) {
				return fmt.Errorf("--plot requires a file path")
			}
			plotPath = args[i+1]
			i++
		case "--accuracy":
			if i+1 >= len(args) {
				return fmt.Errorf("--accuracy requires a value in meters")
			}
			v, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				return fmt.Errorf("invalid --accuracy %q: %w", args[i+1], err)
			}
			accuracy = v
			i++
		case "--source":
			if i+1 >= len(args) {
				return fmt.Errorf("--source requires sim or remote")
			}
			source = args[i+1]
			i++
		}
	}

	applyLogLevel(cfg)
	sensor, cleanup, err := openSensor(cfg, source, true)
	if err != nil {
		return err
	}
	defer cleanup()

	g := geolocator.New(sensor)
	defer g.Close()
	g.SetDesiredAccuracy(accuracy)

	var (
		mu      sync.Mutex
		samples []trackplot.Sample
		seen    int
	)
	done := make(chan struct{}, 1)

	g.OnPositionChanged(func(pos geolocator.Position) {
		fmt.Println(watchLine(pos))

		mu.Lock()
		samples = append(samples, trackplot.Sample{
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Accuracy:  pos.Accuracy,
			Timestamp: pos.Timestamp,
		})
		if len(samples) > watchTailLimit {
			samples = samples[len(samples)-watchTailLimit:]
		}
		seen++
		reached := count > 0 && seen >= count
		mu.Unlock()

		if reached {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	g.OnError(func(e geolocator.GeolocationError) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", e)
	})

	if err := g.StartListening(interval, threshold); err != nil {
		return fmt.Errorf("starting the session: %w", err)
	}
	fmt.Printf("Watching (interval %s, threshold %.0f m). Ctrl-C to stop.\n", interval, threshold)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-done:
	case <-sig:
		fmt.Println()
	}
	g.StopListening()

	if plotPath == "" {
		return nil
	}

	mu.Lock()
	tail := make([]trackplot.Sample, len(samples))
	copy(tail, samples)
	mu.Unlock()

	return writePlot(plotPath, tail)
}

func writePlot(path string, samples []trackplot.Sample) error {
	caption := fmt.Sprintf("%d samples", len(samples))
	if len(samples) > 1 {
		first := samples[0].Timestamp.Format("15:04:05")
		last := samples[len(samples)-1].Timestamp.Format("15:04:05")
		caption = fmt.Sprintf("%d samples, %s to %s", len(samples), first, last)
	}

	img, err := trackplot.Render(samples, trackplot.Options{Caption: caption})
	if err != nil {
		return fmt.Errorf("rendering the track: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	fmt.Printf("Track written to %s\n", path)
	return nil
}
