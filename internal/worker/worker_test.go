package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/shaiso/actionflow/internal/sdk"
)

func newNode(config, inputs map[string]any) *sdk.Node {
	return &sdk.Node{
		ID:       "i1.step",
		Snapshot: sdk.Snapshot{Config: config, Inputs: inputs},
	}
}

// --- HTTPExecutor Tests ---

func TestHTTPExecutor_GET_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("X-Custom", "test-value")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"result": "ok"})
	}))
	defer server.Close()

	outputs, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(map[string]any{
		"method": "GET",
		"url":    server.URL,
	}, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outputs["status_code"] != http.StatusOK {
		t.Errorf("expected status 200, got %v", outputs["status_code"])
	}

	headers, ok := outputs["headers"].(map[string]string)
	if !ok {
		t.Fatal("headers should be map[string]string")
	}
	if headers["X-Custom"] != "test-value" {
		t.Errorf("expected X-Custom header, got %v", headers["X-Custom"])
	}

	body, ok := outputs["body"].(map[string]any)
	if !ok {
		t.Fatalf("body should be map, got %T", outputs["body"])
	}
	if body["result"] != "ok" {
		t.Errorf("expected result=ok, got %v", body["result"])
	}
}

func TestHTTPExecutor_POST_BodyFromInput(t *testing.T) {
	var receivedBody map[string]any
	var receivedContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	outputs, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(
		map[string]any{"method": "POST", "url": server.URL, "headers": map[string]any{"X-Trace": "1"}},
		map[string]any{"body": map[string]any{"name": "test"}},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outputs["status_code"] != http.StatusCreated {
		t.Errorf("expected status 201, got %v", outputs["status_code"])
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected application/json, got %s", receivedContentType)
	}
	if receivedBody["name"] != "test" {
		t.Errorf("expected body from input, got %v", receivedBody)
	}
}

func TestHTTPExecutor_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer server.Close()

	outputs, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(map[string]any{"url": server.URL}, nil))
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}
	if outputs["status_code"] != http.StatusInternalServerError {
		t.Errorf("outputs should be kept on error, got %v", outputs)
	}
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	_, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(map[string]any{
		"url":         server.URL,
		"timeout_sec": 0.1,
	}, nil))
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest on timeout, got %v", err)
	}
}

func TestHTTPExecutor_MissingURL(t *testing.T) {
	_, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(map[string]any{}, nil))
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}
}

func TestHTTPExecutor_ExpectStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		path    string
		expect  any
		wantErr bool
	}{
		{name: "404 accepted by list", path: "/gone", expect: []any{200.0, 404.0}},
		{name: "202 rejected by string list", path: "/", expect: "200, 201", wantErr: true},
		{name: "404 rejected by default", path: "/gone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := map[string]any{"url": server.URL + tt.path}
			if tt.expect != nil {
				config["expect_status"] = tt.expect
			}

			outputs, err := (&HTTPExecutor{Client: server.Client()}).Execute(context.Background(), newNode(config, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if _, ok := outputs["duration_ms"]; !ok {
				t.Error("duration_ms missing from outputs")
			}
		})
	}
}

func TestHTTPExecutor_URLAndRawBodyFromInputs(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.Write([]byte("plain"))
	}))
	defer server.Close()

	outputs, err := (&HTTPExecutor{}).Execute(context.Background(), newNode(
		map[string]any{"method": "PUT", "timeout_sec": "5"},
		map[string]any{"url": server.URL, "body": "raw-text"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "raw-text" {
		t.Errorf("string body should be sent as is, got %q", got)
	}
	if outputs["body"] != "plain" {
		t.Errorf("non-JSON body should be a string, got %v", outputs["body"])
	}
}

func TestConfigHelpers(t *testing.T) {
	m := map[string]any{
		"name":   "x",
		"empty":  "",
		"f":      1.5,
		"i":      3,
		"s":      " 2.5 ",
		"bad":    "abc",
		"codes":  []any{200.0, "201"},
		"csv":    "200,204",
		"single": 418.0,
	}

	if got := getString(m, "name", "d"); got != "x" {
		t.Errorf("getString = %q", got)
	}
	if got := getString(m, "empty", "d"); got != "d" {
		t.Errorf("empty string should fall back, got %q", got)
	}

	for key, want := range map[string]float64{"f": 1.5, "i": 3, "s": 2.5, "bad": 7, "missing": 7} {
		if got := getFloat(m, key, 7); got != want {
			t.Errorf("getFloat(%s) = %v, want %v", key, got, want)
		}
	}

	for key, want := range map[string][]int{"codes": {200, 201}, "csv": {200, 204}, "single": {418}, "missing": nil} {
		if got := getInts(m, key); !slices.Equal(got, want) {
			t.Errorf("getInts(%s) = %v, want %v", key, got, want)
		}
	}
}

// --- DelayExecutor Tests ---

func TestDelayExecutor_Success(t *testing.T) {
	node := newNode(map[string]any{"duration_sec": 0.05}, nil)

	start := time.Now()
	outputs, err := (&DelayExecutor{}).Execute(context.Background(), node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("delay finished too early")
	}
	if outputs["delayed_sec"] != 0.05 {
		t.Errorf("expected delayed_sec=0.05, got %v", outputs["delayed_sec"])
	}
}

func TestDelayExecutor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := (&DelayExecutor{}).Execute(ctx, newNode(map[string]any{"duration_sec": 10.0}, nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// --- TransformExecutor Tests ---

func TestTransformExecutor(t *testing.T) {
	node := newNode(
		map[string]any{"set": map[string]any{"status": "ok", "in": "overridden"}},
		map[string]any{"in": "payload", "other": 1.0},
	)

	outputs, err := (&TransformExecutor{}).Execute(context.Background(), node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]any{"in": "overridden", "other": 1.0, "status": "ok"}
	if len(outputs) != len(want) {
		t.Fatalf("expected %v, got %v", want, outputs)
	}
	for k, v := range want {
		if outputs[k] != v {
			t.Errorf("outputs[%s] = %v, want %v", k, outputs[k], v)
		}
	}
}

// --- Registry Tests ---

func TestNewRegistry_DefaultExecutors(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"http", "delay", "transform"} {
		if _, err := r.Get(name); err != nil {
			t.Errorf("expected %s action, got error: %v", name, err)
		}
	}
}

func TestRegistry_UnknownAction(t *testing.T) {
	_, err := NewRegistry().Get("unknown")
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestRegistry_Task(t *testing.T) {
	r := NewRegistry()
	task := r.Task("transform")

	// Без ключа action используется fallback
	outputs, err := task(context.Background(), newNode(map[string]any{}, map[string]any{"in": "x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["in"] != "x" {
		t.Errorf("expected transform pass-through, got %v", outputs)
	}

	_, err = task(context.Background(), newNode(map[string]any{ConfigAction: "nope"}, nil))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}
