package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// HandleResponse — handle определения.
type HandleResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	SocketType string `json:"socket_type,omitempty"`
}

// DefinitionResponse — определение узла из API.
type DefinitionResponse struct {
	ID        string           `json:"id"`
	Version   int              `json:"version"`
	Name      string           `json:"name,omitempty"`
	Handles   []HandleResponse `json:"handles"`
	Command   string           `json:"command,omitempty"`
	Args      []string         `json:"args,omitempty"`
	CreatedAt string           `json:"created_at"`
}

// BlueprintResponse — blueprint из API (в списке без графа).
type BlueprintResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Version    int            `json:"version"`
	Steps      int            `json:"steps"`
	Branches   int            `json:"branches"`
	StartNodes []string       `json:"start_nodes,omitempty"`
	Graph      map[string]any `json:"graph,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// NodeStats — количество узлов instance по статусам.
type NodeStats struct {
	Total     int `json:"total"`
	Unready   int `json:"unready"`
	Ready     int `json:"ready"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// InstanceResponse — instance из API.
type InstanceResponse struct {
	ID              string     `json:"id"`
	BlueprintID     string     `json:"blueprint_id"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	FinishedNodeIDs []string   `json:"finished_node_ids"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       string     `json:"started_at,omitempty"`
	FinishedAt      string     `json:"finished_at,omitempty"`
	CreatedAt       string     `json:"created_at"`
	Nodes           *NodeStats `json:"nodes,omitempty"`
}

// NodeResponse — узел instance из API.
type NodeResponse struct {
	ID           string         `json:"id"`
	NodeID       string         `json:"node_id"`
	DefinitionID string         `json:"definition_id"`
	Status       string         `json:"status"`
	Progress     float64        `json:"progress"`
	Message      string         `json:"message,omitempty"`
	Error        string         `json:"error,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	StartedAt    string         `json:"started_at,omitempty"`
	FinishedAt   string         `json:"finished_at,omitempty"`
}

// ListInstancesOpts — параметры фильтрации instances.
type ListInstancesOpts struct {
	BlueprintID string
	Status      string
	Limit       int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для ActionFlow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Definitions ---

// ListDefinitions возвращает все определения узлов.
func (c *Client) ListDefinitions() ([]DefinitionResponse, error) {
	var defs []DefinitionResponse
	err := c.list("/api/v1/definitions", nil, &defs)
	return defs, err
}

// CreateDefinition регистрирует определение узла.
func (c *Client) CreateDefinition(def any) (*DefinitionResponse, error) {
	var created DefinitionResponse
	err := c.post("/api/v1/definitions", def, &created)
	return &created, err
}

// GetDefinition возвращает определение по ID.
func (c *Client) GetDefinition(id string) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.get("/api/v1/definitions/"+url.PathEscape(id), &def)
	return &def, err
}

// --- Blueprints ---

// ListBlueprints возвращает blueprints с количеством шагов и ветвей.
func (c *Client) ListBlueprints() ([]BlueprintResponse, error) {
	var bps []BlueprintResponse
	err := c.list("/api/v1/blueprints", nil, &bps)
	return bps, err
}

// CreateBlueprint сохраняет blueprint.
func (c *Client) CreateBlueprint(bp any) (*BlueprintResponse, error) {
	var created BlueprintResponse
	err := c.post("/api/v1/blueprints", bp, &created)
	return &created, err
}

// GetBlueprint возвращает blueprint по ID.
func (c *Client) GetBlueprint(id string) (*BlueprintResponse, error) {
	var bp BlueprintResponse
	err := c.get("/api/v1/blueprints/"+url.PathEscape(id), &bp)
	return &bp, err
}

// --- Instances ---

// ListInstances возвращает instances с фильтрацией.
func (c *Client) ListInstances(opts ListInstancesOpts) ([]InstanceResponse, error) {
	params := url.Values{}
	if opts.BlueprintID != "" {
		params.Set("blueprint_id", opts.BlueprintID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var instances []InstanceResponse
	err := c.list("/api/v1/instances", params, &instances)
	return instances, err
}

// CreateInstance создаёт instance; start=true сразу запускает его.
func (c *Client) CreateInstance(blueprintID string, start bool) (*InstanceResponse, error) {
	path := "/api/v1/blueprints/" + url.PathEscape(blueprintID) + "/instances"
	if start {
		path += "?start=true"
	}

	var inst InstanceResponse
	err := c.post(path, nil, &inst)
	return &inst, err
}

// GetInstance возвращает instance по ID.
func (c *Client) GetInstance(id string) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.get("/api/v1/instances/"+url.PathEscape(id), &inst)
	return &inst, err
}

// StartInstance запускает instance.
func (c *Client) StartInstance(id string) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances/"+url.PathEscape(id)+"/start", nil, &inst)
	return &inst, err
}

// CancelInstance отменяет instance.
func (c *Client) CancelInstance(id string) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances/"+url.PathEscape(id)+"/cancel", nil, &inst)
	return &inst, err
}

// ListNodes возвращает узлы instance.
func (c *Client) ListNodes(instanceID string) ([]NodeResponse, error) {
	var nodes []NodeResponse
	err := c.list("/api/v1/instances/"+url.PathEscape(instanceID)+"/nodes", nil, &nodes)
	return nodes, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
