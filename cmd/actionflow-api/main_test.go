package main

import (
	"testing"
	"time"
)

func TestEnvDuration_HeartbeatDefault(t *testing.T) {
	t.Setenv("HEARTBEAT_TIMEOUT", "")

	d, err := envDuration("HEARTBEAT_TIMEOUT", defaultHeartbeatTimeout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 2*time.Minute {
		t.Errorf("expected 2m, got %v", d)
	}
}

func TestEnvDuration_Override(t *testing.T) {
	t.Setenv("HEARTBEAT_TIMEOUT", "0s")

	d, err := envDuration("HEARTBEAT_TIMEOUT", defaultHeartbeatTimeout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Errorf("expected explicit 0 to disable the sweeper, got %v", d)
	}

	t.Setenv("HEARTBEAT_TIMEOUT", "soon")
	if _, err := envDuration("HEARTBEAT_TIMEOUT", defaultHeartbeatTimeout); err == nil {
		t.Error("expected error for invalid duration")
	}
}
