package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-drift/geolocator/cmd/geoloc/internal/config"
	"github.com/go-drift/geolocator/pkg/geolocator"
	"github.com/go-drift/geolocator/pkg/remote"
)

func init() {
	RegisterCommand(&Command{
		Name:  "serve",
		Short: "Host a companion device as the sensor",
		Long: `Run the companion host and stream whatever the companion reports.

A companion device connects over WebSocket, logs in, and becomes the
location sensor; position updates print as they arrive. The host accepts
one companion at a time and keeps running across reconnects until the
process is interrupted.

Flags:
  --listen ADDR   Address to listen on (default: :7311)`,
		Usage: "geoloc serve [--listen :7311]",
		Run:   runServe,
	})
}

func runServe(args []string) error {
	cfg, err := config.ResolveDefault()
	if err != nil {
		return err
	}

	listen := cfg.Listen
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--listen":
			if i+1 >= len(args) {
				return fmt.Errorf("--listen requires an address")
			}
			listen = args[i+1]
			i++
		}
	}

	applyLogLevel(cfg)

	host := remote.NewHost()
	defer host.Close()

	g := geolocator.New(host)
	defer g.Close()
	g.SetDesiredAccuracy(cfg.Accuracy)

	g.OnPositionChanged(func(pos geolocator.Position) {
		fmt.Println(watchLine(pos))
	})
	g.OnError(func(e geolocator.GeolocationError) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", e)
	})

	unsubscribe := host.OnStatus(func(s geolocator.SensorStatus) {
		switch s {
		case geolocator.StatusInitializing:
			fmt.Println("Companion connected.")
		case geolocator.StatusNotAvailable:
			fmt.Println("Companion disconnected.")
		}
	})
	defer unsubscribe()

	if err := g.StartListening(cfg.Interval, cfg.Threshold); err != nil {
		return fmt.Errorf("starting the session: %w", err)
	}
	defer g.StopListening()

	srv := &http.Server{Addr: listen, Handler: host}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	fmt.Printf("Companion host listening on %s (Ctrl-C to stop)\n", listen)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errCh:
		return fmt.Errorf("companion host: %w", err)
	case <-sig:
		fmt.Println()
	}

	host.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping the companion host: %w", err)
	}

	fmt.Println("Stopped.")
	return nil
}
