package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-drift/geolocator/cmd/geoloc/internal/config"
	"github.com/go-drift/geolocator/pkg/geolocator"
)

func init() {
	RegisterCommand(&Command{
		Name:  "position",
		Short: "Request a single position fix",
		Long: `Request one position fix and print it.

The timeout bounds the whole request; when it expires the in-flight fix is
canceled and the command fails. Desired accuracy selects the sensor's power
tier: values under 100 meters request the high accuracy mode.

Flags:
  --timeout DURATION   Give up after this long (default: 10s)
  --accuracy METERS    Desired accuracy in meters (default: 100)
  --source SOURCE      Sensor source: sim or remote (default: sim)`,
		Usage: "geoloc position [--timeout 10s] [--accuracy 50] [--source sim]",
		Run:   runPosition,
	})
}

func runPosition(args []string) error {
	cfg, err := config.ResolveDefault()
	if err != nil {
		return err
	}

	timeout := cfg.Timeout
	accuracy := cfg.Accuracy
	source := cfg.Source

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--timeout":
			if i+1 >= len(args) {
				return fmt.Errorf("--timeout requires a duration")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --timeout %q: %w", args[i+1], err)
			}
			timeout = d
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

	pos, err := g.CurrentWithTimeout(context.Background(), timeout)
	if err != nil {
		return fmt.Errorf("position request failed: %w", err)
	}
	if pos == nil {
		return fmt.Errorf("position request canceled")
	}

	fmt.Print(formatPosition(*pos))
	return nil
}
