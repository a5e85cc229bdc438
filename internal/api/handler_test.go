package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/actionflow/internal/dispatch"
	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/orchestrator"
	"github.com/shaiso/actionflow/internal/repo/memory"
	"github.com/shaiso/actionflow/internal/telemetry"
)

const (
	stepDefinition = `{
		"id": "step",
		"version": 1,
		"handles": [{"id": "in", "type": "target"}, {"id": "out", "type": "source"}],
		"default_configs": [{"key": "mode", "value": "fast"}],
		"command": "worker",
		"args": ["--node", "{{ .NodeID }}"]
	}`

	chainBlueprint = `{
		"id": "chain",
		"name": "chain",
		"version": 1,
		"graph": {
			"nodes": [
				{"id": "start", "data": {"definition_id": "step", "form_data": [{"key": "mode", "value": "slow"}]}},
				{"id": "A", "data": {"definition_id": "step"}}
			],
			"edges": [
				{"id": "e1", "source": "start", "source_handle": "out", "target": "A", "target_handle": "in"}
			]
		}
	}`

	diamondBlueprint = `{
		"id": "diamond",
		"graph": {
			"nodes": [
				{"id": "start", "data": {"definition_id": "step"}},
				{"id": "A", "data": {"definition_id": "step"}},
				{"id": "B", "data": {"definition_id": "step"}},
				{"id": "C", "data": {"definition_id": "step"}}
			],
			"edges": [
				{"id": "e1", "source": "start", "source_handle": "out", "target": "A", "target_handle": "in"},
				{"id": "e2", "source": "start", "source_handle": "out", "target": "B", "target_handle": "in"},
				{"id": "e3", "source": "A", "source_handle": "out", "target": "C", "target_handle": "in"},
				{"id": "e4", "source": "B", "source_handle": "out", "target": "C", "target_handle": "in"}
			]
		}
	}`
)

// jobRecorder запоминает отправленные задания.
type jobRecorder struct {
	mu   sync.Mutex
	jobs []dispatch.Job
}

func (r *jobRecorder) Launch(_ context.Context, job dispatch.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *jobRecorder) nodeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		ids = append(ids, j.NodeID)
	}
	return ids
}

type testServer struct {
	t    *testing.T
	mux  *http.ServeMux
	jobs *jobRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	jobs := &jobRecorder{}

	orch := orchestrator.New(orchestrator.Config{
		Store:       store,
		Dispatcher:  dispatch.New(dispatch.Config{Launcher: jobs, Logger: logger}),
		CallbackURL: "http://engine.test",
		Logger:      logger,
	})

	mux := http.NewServeMux()
	NewHandler(Config{Store: store, Engine: orch, Logger: logger}).RegisterRoutes(mux)

	return &testServer{t: t, mux: mux, jobs: jobs}
}

func (s *testServer) do(method, path, body, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) post(path, body string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, body, "application/json")
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, "", "")
}

// seed регистрирует определение step и blueprint'ы.
func (s *testServer) seed(blueprints ...string) {
	s.t.Helper()
	require.Equal(s.t, http.StatusCreated, s.post("/api/v1/definitions", stepDefinition).Code)
	for _, bp := range blueprints {
		rec := s.post("/api/v1/blueprints", bp)
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

// createInstance создаёт и запускает instance, возвращает его ID.
func (s *testServer) createInstance(blueprintID string) string {
	s.t.Helper()
	rec := s.post("/api/v1/blueprints/"+blueprintID+"/instances?start=true", "")
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[InstanceResponse](s.t, rec).ID
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	return decodeBody[ErrorResponse](t, rec).Error.Code
}

func TestDefinitions(t *testing.T) {
	s := newTestServer(t)

	rec := s.post("/api/v1/definitions", stepDefinition)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "step", decodeData[domain.WorkNodeDefinition](t, rec).ID)

	rec = s.post("/api/v1/definitions", stepDefinition)
	assert.Equal(t, http.StatusConflict, rec.Code)

	yamlDef := "id: echo\nversion: 2\nhandles:\n  - id: out\n    type: source\ncommand: echo\n"
	rec = s.do(http.MethodPost, "/api/v1/definitions", yamlDef, "application/yaml")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.get("/api/v1/definitions/echo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[domain.WorkNodeDefinition](t, rec).Version)

	rec = s.get("/api/v1/definitions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]domain.WorkNodeDefinition](t, rec), 2)

	rec = s.get("/api/v1/definitions/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"id":`, ErrCodeBadRequest},
		{"no executables", `{"id": "x"}`, ErrCodeValidation},
		{"empty id", `{"command": "echo"}`, ErrCodeValidation},
		{"bad handle type", `{"id": "x", "command": "echo", "handles": [{"id": "h", "type": "sideways"}]}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.post("/api/v1/definitions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestBlueprints(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	rec := s.post("/api/v1/blueprints", diamondBlueprint)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[BlueprintResponse](t, rec)
	assert.Equal(t, 4, created.Steps)
	assert.Equal(t, 2, created.Branches)
	assert.Equal(t, []string{"start"}, created.StartNodes)

	rec = s.get("/api/v1/blueprints/diamond")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[BlueprintResponse](t, rec).Graph.Edges, 4)

	rec = s.get("/api/v1/blueprints")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]BlueprintSummaryResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Branches)
	assert.Equal(t, 4, list[0].Steps)

	rec = s.get("/api/v1/blueprints/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBlueprint_GeneratesID(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	body := `{"graph": {"nodes": [{"id": "only", "data": {"definition_id": "step"}}]}}`
	rec := s.post("/api/v1/blueprints", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeData[BlueprintResponse](t, rec).ID)
}

func TestCreateBlueprint_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown definition", `{"id": "x", "graph": {"nodes": [{"id": "a", "data": {"definition_id": "nope"}}]}}`},
		{"empty graph", `{"id": "x", "graph": {"nodes": []}}`},
		{"dangling edge", `{"id": "x", "graph": {
			"nodes": [{"id": "a", "data": {"definition_id": "step"}}],
			"edges": [{"id": "e1", "source": "a", "source_handle": "out", "target": "ghost", "target_handle": "in"}]}}`},
		{"cycle", `{"id": "x", "graph": {
			"nodes": [{"id": "a", "data": {"definition_id": "step"}}, {"id": "b", "data": {"definition_id": "step"}}],
			"edges": [
				{"id": "e1", "source": "a", "source_handle": "out", "target": "b", "target_handle": "in"},
				{"id": "e2", "source": "b", "source_handle": "out", "target": "a", "target_handle": "in"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.seed()
			rec := s.post("/api/v1/blueprints", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, ErrCodeValidation, errorCode(t, rec))
		})
	}
}

func TestInstanceLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seed(chainBlueprint)

	// Создание без запуска
	rec := s.post("/api/v1/blueprints/chain/instances", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	inst := decodeData[InstanceResponse](t, rec)
	assert.Equal(t, domain.InstanceStatusReady, inst.Status)
	require.NotNil(t, inst.Nodes)
	assert.Equal(t, 1, inst.Nodes.Ready)
	assert.Empty(t, s.jobs.nodeIDs())

	// Запуск
	rec = s.post("/api/v1/instances/"+inst.ID+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.InstanceStatusRunning, decodeData[InstanceResponse](t, rec).Status)
	assert.Equal(t, []string{inst.ID + ".start"}, s.jobs.nodeIDs())

	// Повторный запуск
	rec = s.post("/api/v1/instances/"+inst.ID+"/start", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ErrCodeInvalidState, errorCode(t, rec))

	// Узлы в порядке графа
	rec = s.get("/api/v1/instances/" + inst.ID + "/nodes")
	require.Equal(t, http.StatusOK, rec.Code)
	nodes := decodeData[[]domain.InstanceNode](t, rec)
	require.Len(t, nodes, 2)
	assert.Equal(t, "start", nodes[0].NodeID)
	assert.Equal(t, domain.NodeStatusRunning, nodes[0].Status)
	assert.Equal(t, domain.NodeStatusUnready, nodes[1].Status)

	rec = s.get("/api/v1/instances/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.get("/api/v1/instances/missing/nodes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.post("/api/v1/blueprints/missing/instances", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkerProtocol(t *testing.T) {
	s := newTestServer(t)
	s.seed(chainBlueprint)
	id := s.createInstance("chain")
	start := "/action/sdk/" + id + ".start"

	// INIT: form_data перекрывает значение по умолчанию
	rec := s.get(start + "/init")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[orchestrator.NodeSnapshot](t, rec)
	assert.Equal(t, "slow", snap.Config["mode"])

	// HEARTBEAT
	rec = s.post(start+"/heartbeat", `{"progress": 40, "message": "working"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DirectiveContinue, decodeBody[HeartbeatResponse](t, rec).Action)

	rec = s.post(start+"/heartbeat", `{"progress": 150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// HEARTBEAT для узла, который ещё не запущен
	rec = s.post("/action/sdk/"+id+".A/heartbeat", `{"progress": 1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrCodeProtocol, errorCode(t, rec))

	// RESULT
	rec = s.post(start+"/result", `{"status": "done"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.post(start+"/result", `{"status": "success", "outputs": {"out": "payload"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.NodeStatusCompleted, decodeBody[ResultResponse](t, rec).Status)
	assert.Equal(t, []string{id + ".start", id + ".A"}, s.jobs.nodeIDs())

	// Повтор RESULT подтверждается текущим статусом
	rec = s.post(start+"/result", `{"status": "failed", "error": "late"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.NodeStatusCompleted, decodeBody[ResultResponse](t, rec).Status)

	// Вход A получен от start
	rec = s.get("/action/sdk/" + id + ".A/init")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", decodeBody[orchestrator.NodeSnapshot](t, rec).Inputs["in"])

	rec = s.post("/action/sdk/"+id+".A/result", `{"status": "success"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/api/v1/instances/" + id)
	require.Equal(t, http.StatusOK, rec.Code)
	inst := decodeData[InstanceResponse](t, rec)
	assert.Equal(t, domain.InstanceStatusCompleted, inst.Status)
	assert.InDelta(t, 100.0, inst.Progress, 0.001)

	rec = s.get("/action/sdk/" + id + ".ghost/init")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.post("/action/sdk/"+id+".ghost/result", `{"status": "success"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelInstance(t *testing.T) {
	s := newTestServer(t)
	s.seed(chainBlueprint)
	id := s.createInstance("chain")

	rec := s.post("/api/v1/instances/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[InstanceResponse](t, rec).CancelRequested)

	rec = s.post("/action/sdk/"+id+".start/heartbeat", `{"progress": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DirectiveStop, decodeBody[HeartbeatResponse](t, rec).Action)

	rec = s.post("/action/sdk/"+id+".start/result", `{"status": "failed", "error": "stopped"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/api/v1/instances/" + id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.InstanceStatusFailed, decodeData[InstanceResponse](t, rec).Status)

	rec = s.post("/api/v1/instances/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListInstances(t *testing.T) {
	s := newTestServer(t)
	s.seed(chainBlueprint, diamondBlueprint)

	s.createInstance("chain")
	s.createInstance("diamond")
	require.Equal(t, http.StatusCreated, s.post("/api/v1/blueprints/chain/instances", "").Code)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by blueprint", "?blueprint_id=chain", 2},
		{"by status", "?status=READY", 1},
		{"limit", "?limit=1", 1},
		{"offset", "?offset=2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.get("/api/v1/instances" + tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decodeData[[]InstanceResponse](t, rec), tt.want)
		})
	}

	for _, q := range []string{"?status=DONE", "?limit=-1", "?offset=x"} {
		rec := s.get("/api/v1/instances" + q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(RequestID(logger), Recovery(), Observe())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternalError, errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestMiddleware_RequestID(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestID(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}
