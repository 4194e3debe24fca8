package lifecycle

import (
	"testing"
	"time"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
	if !ShuttingDownSince().IsZero() {
		t.Error("ShuttingDownSince() should be zero while serving")
	}
}

func TestSetShuttingDown_RecordsFirstTime(t *testing.T) {
	defer SetShuttingDown(false)

	before := time.Now()
	SetShuttingDown(true)
	first := ShuttingDownSince()
	if !IsShuttingDown() {
		t.Fatal("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
	if first.Before(before.Add(-time.Second)) || first.After(time.Now().Add(time.Second)) {
		t.Errorf("ShuttingDownSince() = %v, want about %v", first, before)
	}

	time.Sleep(2 * time.Millisecond)
	SetShuttingDown(true)
	if got := ShuttingDownSince(); !got.Equal(first) {
		t.Errorf("second SetShuttingDown(true) moved the time: %v -> %v", first, got)
	}
}

func TestSetShuttingDown_False(t *testing.T) {
	SetShuttingDown(true)
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}
