package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/actionflow/internal/mq"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob() Job {
	return Job{
		ExecutableID: "step",
		Command:      "worker",
		Args:         []string{"--node", "i1.start"},
		NodeID:       "i1.start",
		CallbackURL:  "http://engine.test",
	}
}

func TestSubmit_Success(t *testing.T) {
	var got Job
	var hasDeadline bool
	d := New(Config{
		Timeout: time.Second,
		Logger:  quietLogger(),
		Launcher: LauncherFunc(func(ctx context.Context, job Job) error {
			_, hasDeadline = ctx.Deadline()
			got = job
			return nil
		}),
	})

	if err := d.Submit(context.Background(), testJob()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got.NodeID != "i1.start" || got.Command != "worker" {
		t.Errorf("launcher got %+v", got)
	}
	if !hasDeadline {
		t.Error("launch context has no deadline")
	}
}

func TestSubmit_LauncherError(t *testing.T) {
	boom := errors.New("broker down")
	d := New(Config{
		Logger:   quietLogger(),
		Launcher: LauncherFunc(func(context.Context, Job) error { return boom }),
	})

	err := d.Submit(context.Background(), testJob())

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DispatchError, got %v", err)
	}
	if de.NodeID != "i1.start" || de.ExecutableID != "step" {
		t.Errorf("DispatchError = %+v", de)
	}
	if !errors.Is(err, boom) {
		t.Error("DispatchError should unwrap to the launcher error")
	}
}

func TestSubmit_NoLauncher(t *testing.T) {
	err := New(Config{Logger: quietLogger()}).Submit(context.Background(), testJob())
	if !errors.Is(err, ErrNoLauncher) {
		t.Fatalf("expected ErrNoLauncher, got %v", err)
	}
}

type fakePublisher struct {
	payloads []mq.JobSubmitPayload
	err      error
}

func (p *fakePublisher) PublishJobSubmit(_ context.Context, payload mq.JobSubmitPayload) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestMQLauncher(t *testing.T) {
	pub := &fakePublisher{}
	if err := NewMQLauncher(pub).Launch(context.Background(), testJob()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if len(pub.payloads) != 1 {
		t.Fatalf("published %d payloads, want 1", len(pub.payloads))
	}
	p := pub.payloads[0]
	if p.ExecutableID != "step" || p.NodeID != "i1.start" || p.CallbackURL != "http://engine.test" {
		t.Errorf("payload = %+v", p)
	}
	if len(p.Args) != 2 || p.Args[1] != "i1.start" {
		t.Errorf("args = %v", p.Args)
	}

	pub.err = mq.ErrNacked
	if err := NewMQLauncher(pub).Launch(context.Background(), testJob()); !errors.Is(err, mq.ErrNacked) {
		t.Errorf("expected ErrNacked, got %v", err)
	}
}

func TestLogLauncher(t *testing.T) {
	if err := (LogLauncher{}).Launch(context.Background(), testJob()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
}
