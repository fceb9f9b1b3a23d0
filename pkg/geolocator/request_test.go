package geolocator

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waitResolved(t *testing.T, req *PositionRequest) {
	t.Helper()
	select {
	case <-req.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve")
	}
}

func TestRequestResolveSuccess(t *testing.T) {
	req := newPositionRequest()
	req.resolveSuccess(Position{Latitude: 48.8584, Longitude: 2.2945, Accuracy: 12})

	waitResolved(t, req)
	got, err := req.Position()
	if err != nil {
		t.Fatalf("Position returned error: %v", err)
	}
	if got == nil || got.Latitude != 48.8584 || got.Longitude != 2.2945 {
		t.Errorf("Position = %+v, want the resolved value", got)
	}
	if req.Canceled() {
		t.Error("Canceled = true on a successful request")
	}
}

func TestRequestResolveFailed(t *testing.T) {
	req := newPositionRequest()
	req.resolveFailed(ErrUnauthorized)

	got, err := req.Position()
	if got != nil {
		t.Errorf("Position = %+v, want nil", got)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRequestResolveCanceled(t *testing.T) {
	req := newPositionRequest()
	req.resolveCanceled()

	got, err := req.Position()
	if got != nil || err != nil {
		t.Errorf("canceled request = (%+v, %v), want (nil, nil)", got, err)
	}
	if !req.Canceled() {
		t.Error("Canceled = false after resolveCanceled")
	}
}

func TestRequestFirstResolutionWins(t *testing.T) {
	req := newPositionRequest()
	req.resolveSuccess(Position{Latitude: 1, Longitude: 2, Accuracy: 3})
	req.resolveFailed(ErrTimeout)
	req.resolveCanceled()

	got, err := req.Position()
	if err != nil {
		t.Fatalf("err = %v after a success resolution", err)
	}
	if got == nil || got.Latitude != 1 {
		t.Errorf("Position = %+v, want the first resolution", got)
	}
	if req.Canceled() {
		t.Error("Canceled = true after a success resolution")
	}
}

func TestRequestPositionBlocksUntilResolved(t *testing.T) {
	req := newPositionRequest()

	var wg sync.WaitGroup
	var got *Position
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err = req.Position()
	}()

	time.Sleep(20 * time.Millisecond)
	req.resolveSuccess(Position{Latitude: 60.17, Longitude: 24.94, Accuracy: 8})
	wg.Wait()

	if err != nil {
		t.Fatalf("Position returned error: %v", err)
	}
	if got == nil || got.Latitude != 60.17 {
		t.Errorf("Position = %+v, want the resolved fix", got)
	}
}

func TestRequestConcurrentResolvers(t *testing.T) {
	req := newPositionRequest()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				req.resolveFailed(ErrTimeout)
			} else {
				req.resolveCanceled()
			}
		}(i)
	}
	wg.Wait()

	waitResolved(t, req)
	got, err := req.Position()
	if got != nil {
		t.Errorf("Position = %+v, want nil", got)
	}
	// Either outcome is legal, but exactly one of the two shapes must hold.
	if req.Canceled() {
		if err != nil {
			t.Errorf("canceled request carries error %v", err)
		}
	} else if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}
