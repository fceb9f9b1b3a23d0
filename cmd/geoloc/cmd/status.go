package cmd

import (
	"fmt"

	"github.com/go-drift/geolocator/cmd/geoloc/internal/config"
	"github.com/go-drift/geolocator/pkg/geolocator"
)

func init() {
	RegisterCommand(&Command{
		Name:  "status",
		Short: "Show sensor status",
		Long: `Show the selected sensor's readiness.

For the remote source this reports the companion host's current state
without waiting for a companion to connect.

Flags:
  --source SOURCE   Sensor source: sim or remote (default: sim)`,
		Usage: "geoloc status [--source sim]",
		Run:   runStatus,
	})
}

func runStatus(args []string) error {
	cfg, err := config.ResolveDefault()
	if err != nil {
		return err
	}

	source := cfg.Source
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--source":
			if i+1 >= len(args) {
				return fmt.Errorf("--source requires sim or remote")
			}
			source = args[i+1]
			i++
		}
	}

	applyLogLevel(cfg)
	sensor, cleanup, err := openSensor(cfg, source, false)
	if err != nil {
		return err
	}
	defer cleanup()

	g := geolocator.New(sensor)
	defer g.Close()
	g.SetDesiredAccuracy(cfg.Accuracy)

	fmt.Printf("  %-11s %s\n", "Source:", source)
	fmt.Printf("  %-11s %s\n", "Status:", sensor.Status())
	fmt.Printf("  %-11s %t\n", "Available:", g.IsAvailable())
	fmt.Printf("  %-11s %t\n", "Enabled:", g.IsEnabled())
	fmt.Printf("  %-11s %.0f m (%s tier)\n", "Accuracy:", cfg.Accuracy, geolocator.TierForAccuracy(cfg.Accuracy))

	if snap, err := g.LastKnown(); err == nil && snap != nil {
		fmt.Printf("  %-11s %.6f, %.6f\n", "Last fix:", snap.Latitude, snap.Longitude)
	}

	return nil
}
