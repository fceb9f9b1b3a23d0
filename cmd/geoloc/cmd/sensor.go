package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/go-drift/geolocator/cmd/geoloc/internal/config"
	"github.com/go-drift/geolocator/pkg/geolocator"
	"github.com/go-drift/geolocator/pkg/remote"
	"github.com/go-drift/geolocator/pkg/sim"
)

// applyLogLevel sets the global log level. Call it before constructing
// anything that captures the default logger.
func applyLogLevel(cfg *config.Resolved) {
	log.DefaultLogger.Level = log.ParseLevel(cfg.Log)
}

// openSensor builds the sensor selected by source. For the remote source it
// starts the companion host on cfg.Listen and, when wait is set, blocks
// until a companion logs in. The returned cleanup tears down whatever the
// source started.
func openSensor(cfg *config.Resolved, source string, wait bool) (geolocator.Sensor, func(), error) {
	switch source {
	case "sim":
		s := sim.New(sim.Config{
			Latitude:   cfg.Sim.Latitude,
			Longitude:  cfg.Sim.Longitude,
			Altitude:   cfg.Sim.Altitude,
			Seed:       cfg.Sim.Seed,
			StepMeters: cfg.Sim.Step,
		})
		return s, s.Close, nil

	case "remote":
		host := remote.NewHost()
		srv := &http.Server{Addr: cfg.Listen, Handler: host}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Error: companion host: %v\n", err)
			}
		}()
		cleanup := func() {
			host.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}
		if wait {
			fmt.Printf("Listening for a companion on %s ...\n", cfg.Listen)
			waitForCompanion(host)
			fmt.Println("Companion connected.")
		}
		return host, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q (use sim or remote)", source)
	}
}

// waitForCompanion blocks until the host has an attached companion.
func waitForCompanion(host *remote.Host) {
	attached := make(chan struct{}, 1)
	unsubscribe := host.OnStatus(func(s geolocator.SensorStatus) {
		if s != geolocator.StatusNotAvailable {
			select {
			case attached <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if host.Status() != geolocator.StatusNotAvailable {
		return
	}
	<-attached
}
