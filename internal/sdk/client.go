package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shaiso/actionflow/internal/domain"
)

// Переменные окружения, которые launcher передаёт worker'у.
const (
	EnvNodeID      = "ACTIONFLOW_NODE_ID"
	EnvCallbackURL = "ACTIONFLOW_CALLBACK_URL"
)

// ErrMissingEnv — не заданы переменные окружения worker'а.
var ErrMissingEnv = errors.New("worker environment is not set")

// Snapshot — ответ на INIT.
type Snapshot struct {
	Config  map[string]any `json:"config"`
	Inputs  map[string]any `json:"inputs"`
	Outputs map[string]any `json:"outputs"`
}

// Result — итог работы узла.
type Result struct {
	Status  domain.ResultStatus `json:"status"`
	Outputs map[string]any      `json:"outputs,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// APIError — ошибка, которую вернул движок.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("actionflow: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("actionflow: %s: %s", e.Code, e.Message)
}

// Client — HTTP-клиент протокола управления для одного узла.
type Client struct {
	baseURL    string
	nodeID     string
	httpClient *http.Client
}

// NewClient создаёт клиент для узла nodeID.
func NewClient(baseURL, nodeID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		nodeID:  nodeID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FromEnv создаёт клиент из ACTIONFLOW_NODE_ID и ACTIONFLOW_CALLBACK_URL.
func FromEnv() (*Client, error) {
	nodeID := os.Getenv(EnvNodeID)
	callback := os.Getenv(EnvCallbackURL)
	if nodeID == "" || callback == "" {
		return nil, fmt.Errorf("%w: %s and %s are required", ErrMissingEnv, EnvNodeID, EnvCallbackURL)
	}
	return NewClient(callback, nodeID), nil
}

// NodeID возвращает ID узла instance.
func (c *Client) NodeID() string {
	return c.nodeID
}

// Init запрашивает конфигурацию, входы и выходы узла.
func (c *Client) Init(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "init", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Heartbeat сообщает прогресс и возвращает директиву движка.
func (c *Client) Heartbeat(ctx context.Context, progress float64, message string) (domain.Directive, error) {
	body := map[string]any{"progress": progress, "message": message}

	var resp struct {
		Action domain.Directive `json:"action"`
	}
	if err := c.do(ctx, http.MethodPost, "heartbeat", body, &resp); err != nil {
		return "", err
	}
	return resp.Action, nil
}

// Result отправляет итог работы и возвращает статус узла после обработки.
func (c *Client) Result(ctx context.Context, result Result) (domain.NodeStatus, error) {
	var resp struct {
		Status domain.NodeStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "result", result, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) do(ctx context.Context, method, op string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + "/action/sdk/" + url.PathEscape(c.nodeID) + "/" + op
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
