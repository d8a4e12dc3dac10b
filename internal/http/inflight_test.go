package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestInFlightTracker_DrainsConcurrentWork(t *testing.T) {
	tracker := &InFlightTracker{}
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		tracker.Increment()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tracker.Decrement()
			<-release
		}()
	}
	if got := tracker.Count(); got != 5 {
		t.Fatalf("Count() = %d, want 5", got)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tracker.WaitForZero(short, 2*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() with work pending = %v, want DeadlineExceeded", err)
	}

	close(release)
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := tracker.WaitForZero(ctx, 2*time.Millisecond); err != nil {
		t.Fatalf("WaitForZero() error = %v", err)
	}
	wg.Wait()
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() after drain = %d, want 0", got)
	}
}

// TestWaitForInFlight_HoldsUntilHandlerReturns mirrors shutdown: the server has
// stopped accepting, and the drain waits on a request still being served.
func TestWaitForInFlight_HoldsUntilHandlerReturns(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	}()
	<-entered

	if got := InFlightCount(); got != 1 {
		t.Errorf("InFlightCount() = %d, want 1", got)
	}
	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(short, 2*time.Millisecond); err == nil {
		t.Error("WaitForInFlight() returned while a request was still running")
	}

	close(release)
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := WaitForInFlight(ctx, 2*time.Millisecond); err != nil {
		t.Fatalf("WaitForInFlight() error = %v", err)
	}
	<-done
}
