package connectors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// ExecuteResponse - ответ координатора на POST /execute.
type ExecuteResponse struct {
	Response   string   `json:"response"`
	AgentsUsed []string `json:"agents_used"`
	Success    bool     `json:"success"`
}

type AgentClient struct {
	*baseClient
}

func NewAgentClient(baseURL string, o Options) *AgentClient {
	return &AgentClient{baseClient: newBaseClient(domain.ServiceAgent, baseURL, o)}
}

// Execute отдает запрос координатору, который сам распределяет его по агентам.
func (c *AgentClient) Execute(ctx context.Context, query string, qctx map[string]any) (*ExecuteResponse, error) {
	if qctx == nil {
		qctx = map[string]any{}
	}
	body := map[string]any{"query": query, "context": qctx}

	var resp ExecuteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/execute", body, &resp, "Failed to execute query"); err != nil {
		return nil, err
	}
	if resp.AgentsUsed == nil {
		resp.AgentsUsed = []string{}
	}
	return &resp, nil
}

// Agents - список зарегистрированных агентов. Координатор отдает его
// то массивом, то объектом {"agents": [...]}, элементы - строки или объекты.
func (c *AgentClient) Agents(ctx context.Context) ([]domain.AgentInfo, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/agents", nil, &raw, "Failed to get agents"); err != nil {
		return nil, err
	}
	agents, err := decodeAgents(raw)
	if err != nil {
		return nil, &domain.ServiceError{Service: c.service, Message: "malformed agent list", Err: err}
	}
	return agents, nil
}

// Status - сырое состояние координатора (GET /status), форма не фиксирована.
func (c *AgentClient) Status(ctx context.Context) (map[string]any, error) {
	var status map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &status, "Failed to get status"); err != nil {
		return nil, err
	}
	return status, nil
}

func decodeAgents(raw json.RawMessage) ([]domain.AgentInfo, error) {
	var wrapped struct {
		Agents []json.RawMessage `json:"agents"`
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Agents
	}

	agents := make([]domain.AgentInfo, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			agents = append(agents, domain.AgentInfo{Name: name})
			continue
		}
		var info domain.AgentInfo
		if err := json.Unmarshal(item, &info); err != nil {
			return nil, err
		}
		agents = append(agents, info)
	}
	return agents, nil
}
