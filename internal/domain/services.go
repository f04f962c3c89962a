package domain

import "time"

type HealthState string

const (
	HealthChecking HealthState = "checking" // проверка еще не завершилась
	HealthOnline   HealthState = "online"
	HealthOffline  HealthState = "offline"
)

// Имена бэкенд-сервисов, они же ключи в конфиге.
const (
	ServiceNLSQL    = "nl_sql"
	ServiceAgent    = "agent"
	ServiceRAG      = "rag"
	ServiceForecast = "forecast"
)

// Имена агентов, которые координатор возвращает в agents_used.
const (
	AgentSQL      = "sql_agent"
	AgentRAG      = "rag_agent"
	AgentForecast = "forecast_agent"
)

type ServiceHealth struct {
	Name      string      `json:"name"`
	State     HealthState `json:"state"`
	CheckedAt time.Time   `json:"checkedAt,omitempty"`
}

// AgentInfo - агент, зарегистрированный в координаторе (GET /agents).
type AgentInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Status       string   `json:"status,omitempty"`
}
