package launcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/shaiso/actionflow/internal/mq"
	"github.com/shaiso/actionflow/internal/sdk"
)

func newTestLauncher(start StartFunc) *Launcher {
	return New(Config{
		Start:   start,
		WorkDir: "/tmp",
		Output:  io.Discard,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testJob() mq.JobSubmitPayload {
	return mq.JobSubmitPayload{
		ExecutableID: "main",
		Command:      "actionflow-worker",
		Args:         []string{"--action", "delay"},
		NodeID:       "i1.start",
		CallbackURL:  "http://engine.test",
	}
}

func TestLaunch_PreparesProcess(t *testing.T) {
	var started *exec.Cmd
	l := newTestLauncher(func(cmd *exec.Cmd) error {
		started = cmd
		return nil
	})

	if err := l.Launch(context.Background(), testJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started == nil {
		t.Fatal("process was not started")
	}

	if want := []string{"actionflow-worker", "--action", "delay"}; !slices.Equal(started.Args, want) {
		t.Errorf("args = %v, want %v", started.Args, want)
	}
	if started.Dir != "/tmp" {
		t.Errorf("dir = %q, want /tmp", started.Dir)
	}

	for _, kv := range []string{
		sdk.EnvNodeID + "=i1.start",
		sdk.EnvCallbackURL + "=http://engine.test",
		EnvExecutableID + "=main",
	} {
		if !slices.Contains(started.Env, kv) {
			t.Errorf("env is missing %s", kv)
		}
	}
}

func TestLaunch_InvalidJob(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mq.JobSubmitPayload)
	}{
		{"no command", func(j *mq.JobSubmitPayload) { j.Command = "" }},
		{"no node", func(j *mq.JobSubmitPayload) { j.NodeID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			l := newTestLauncher(func(*exec.Cmd) error {
				called = true
				return nil
			})

			job := testJob()
			tt.mutate(&job)

			err := l.Launch(context.Background(), job)
			if !errors.Is(err, ErrInvalidJob) || !errors.Is(err, mq.ErrPermanent) {
				t.Fatalf("expected permanent ErrInvalidJob, got %v", err)
			}
			if called {
				t.Error("process must not be started")
			}
		})
	}
}

func TestLaunch_StartFailureIsPermanent(t *testing.T) {
	l := newTestLauncher(nil)

	job := testJob()
	job.Command = "/nonexistent/actionflow-worker"

	err := l.Launch(context.Background(), job)
	if !errors.Is(err, mq.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}

func TestHandleJob(t *testing.T) {
	var nodeID string
	l := newTestLauncher(func(cmd *exec.Cmd) error {
		for _, kv := range cmd.Env {
			if v, ok := strings.CutPrefix(kv, sdk.EnvNodeID+"="); ok {
				nodeID = v
			}
		}
		return nil
	})

	delivery := &mq.Delivery{Message: mq.Message{
		ID:   "m1",
		Type: mq.MessageTypeJobSubmit,
		Payload: map[string]any{
			"executable_id": "main",
			"command":       "actionflow-worker",
			"node_id":       "i1.A",
			"callback_url":  "http://engine.test",
		},
	}}
	if err := l.HandleJob(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodeID != "i1.A" {
		t.Errorf("node id = %q, want i1.A", nodeID)
	}

	bad := &mq.Delivery{Message: mq.Message{ID: "m2", Payload: "not an object"}}
	if err := l.HandleJob(context.Background(), bad); !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("expected ErrPermanent for bad payload, got %v", err)
	}
}
