package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestInFlightTracker_ConcurrentBalanced(t *testing.T) {
	tracker := &InFlightTracker{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
			tracker.Decrement()
		}()
	}
	wg.Wait()

	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d after balanced calls, want 0", got)
	}
}

func TestInFlightTracker_WaitForZero_DrainsAmbientRequest(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tracker.WaitForZero(ctx, 2*time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitForZero() error = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after the request finished")
	}
}

func TestInFlightTracker_WaitForZero_DeadlineExceeded(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tracker.WaitForZero(ctx, 2*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	base := InFlightCount()
	var during int64
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/equipment/PUMP_001_NYC/ambient", nil))

	if during != base+1 {
		t.Errorf("in-flight during request = %d, want %d", during, base+1)
	}
	if got := InFlightCount(); got != base {
		t.Errorf("in-flight after request = %d, want %d", got, base)
	}
}
