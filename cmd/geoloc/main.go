// Command geoloc drives a location sensor from the terminal: single fixes,
// streamed watch sessions, track rendering, and a WebSocket companion host.
package main

import (
	"os"

	"github.com/go-drift/geolocator/cmd/geoloc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
