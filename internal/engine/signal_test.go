package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignalWakesAllWatchers(t *testing.T) {
	sig := NewChangeSignal(nil)
	ctx := context.Background()

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		watch := sig.Watch()
		go func() { done <- sig.Wait(ctx, watch, 5*time.Second) }()
	}
	sig.Broadcast()

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Unexpected wait error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Watcher was not woken by broadcast")
		}
	}
}

func TestSignalBroadcastBeforeWaitIsNotLost(t *testing.T) {
	sig := NewChangeSignal(nil)
	watch := sig.Watch()
	sig.Broadcast()

	start := time.Now()
	if err := sig.Wait(context.Background(), watch, 5*time.Second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait should return at once for a broadcast that already happened")
	}
}

func TestSignalWaitTimeoutAndCancel(t *testing.T) {
	sig := NewChangeSignal(nil)

	if err := sig.Wait(context.Background(), sig.Watch(), 5*time.Millisecond); err != nil {
		t.Errorf("Timeout should return nil so the caller re-tests, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sig.Wait(ctx, sig.Watch(), 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
