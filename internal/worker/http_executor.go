package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/shaiso/actionflow/internal/sdk"
)

// ErrHTTPRequest — запрос не выполнен или ответ с недопустимым кодом.
var ErrHTTPRequest = errors.New("http request failed")

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 10 << 20
)

// HTTPExecutor — действие "http": один HTTP-запрос на узел.
//
// Config (url и body также берутся из одноимённых входов):
//   - method: GET (default), POST, PUT, DELETE
//   - url: адрес запроса
//   - headers: заголовки {name: value}
//   - body: тело, сериализуется в JSON; строка отправляется как есть
//   - timeout_sec: таймаут запроса (default: 30)
//   - expect_status: допустимые коды, [200, 204] или "200,204"; по умолчанию любой < 400
//
// Outputs: status_code, headers, body (JSON или строка), duration_ms.
type HTTPExecutor struct {
	// Client — HTTP-клиент (default: http.DefaultClient).
	Client *http.Client
}

// Execute выполняет запрос. При неожиданном коде outputs возвращаются
// вместе с ошибкой и попадают в RESULT.
func (e *HTTPExecutor) Execute(ctx context.Context, node *sdk.Node) (map[string]any, error) {
	method := getString(node.Config, "method", http.MethodGet)

	rawURL, _ := lookup(node.Config, node.Inputs, "url")
	url, _ := rawURL.(string)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrHTTPRequest)
	}

	timeout := time.Duration(getFloat(node.Config, "timeout_sec", 0) * float64(time.Second))
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := requestBody(node)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}
	setHeaders(req, node.Config)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	node.Report(10, method+" "+url)
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}
	node.Report(90, fmt.Sprintf("HTTP %d", resp.StatusCode))

	outputs := buildOutputs(resp, respBody)
	outputs["duration_ms"] = time.Since(start).Milliseconds()

	if !statusAccepted(resp.StatusCode, getInts(node.Config, "expect_status")) {
		return outputs, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPRequest, resp.StatusCode, truncate(string(respBody), 200))
	}
	return outputs, nil
}

// requestBody собирает тело из config.body или входа body.
func requestBody(node *sdk.Node) (io.Reader, error) {
	v, ok := lookup(node.Config, node.Inputs, "body")
	if !ok {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return bytes.NewReader([]byte(s)), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
	}
	return bytes.NewReader(b), nil
}

func statusAccepted(code int, expected []int) bool {
	if len(expected) == 0 {
		return code < 400
	}
	return slices.Contains(expected, code)
}

// buildOutputs формирует outputs из ответа.
func buildOutputs(resp *http.Response, body []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// JSON, иначе строка
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		parsed = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsed,
	}
}

func setHeaders(req *http.Request, config map[string]any) {
	switch h := config["headers"].(type) {
	case map[string]any:
		for key, val := range h {
			req.Header.Set(key, fmt.Sprint(val))
		}
	case map[string]string:
		for key, val := range h {
			req.Header.Set(key, val)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
