package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

// formatPosition renders a fix as an aligned block, one reading per line.
// Optional readings appear only when the sensor reported them.
func formatPosition(pos geolocator.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %-11s %.6f\n", "Latitude:", pos.Latitude)
	fmt.Fprintf(&b, "  %-11s %.6f\n", "Longitude:", pos.Longitude)
	fmt.Fprintf(&b, "  %-11s %.1f m\n", "Accuracy:", pos.Accuracy)
	fmt.Fprintf(&b, "  %-11s %s\n", "Time:", pos.Timestamp.Format(time.RFC3339))
	if pos.Altitude != nil {
		if pos.AltitudeAccuracy != nil {
			fmt.Fprintf(&b, "  %-11s %.1f m (accuracy %.1f m)\n", "Altitude:", *pos.Altitude, *pos.AltitudeAccuracy)
		} else {
			fmt.Fprintf(&b, "  %-11s %.1f m\n", "Altitude:", *pos.Altitude)
		}
	}
	if pos.Speed != nil {
		fmt.Fprintf(&b, "  %-11s %.1f m/s\n", "Speed:", *pos.Speed)
	}
	if pos.Heading != nil {
		fmt.Fprintf(&b, "  %-11s %.1f deg\n", "Heading:", *pos.Heading)
	}
	return b.String()
}

// watchLine renders one streamed update as a single line.
func watchLine(pos geolocator.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %.6f, %.6f  ±%.0fm", pos.Timestamp.Format("15:04:05"), pos.Latitude, pos.Longitude, pos.Accuracy)
	if pos.Speed != nil {
		fmt.Fprintf(&b, "  %.1f m/s", *pos.Speed)
	}
	if pos.Heading != nil {
		fmt.Fprintf(&b, "  %.0f deg", *pos.Heading)
	}
	return b.String()
}
