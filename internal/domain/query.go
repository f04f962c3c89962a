package domain

import "time"

// QueryMode - режим отправки запроса оператора.
type QueryMode string

const (
	ModeDirect       QueryMode = "direct"       // NL-SQL напрямую
	ModeOrchestrated QueryMode = "orchestrated" // через координатор агентов
)

// Row - одна строка результата SQL: колонка -> значение.
type Row = map[string]any

// Виды фрагментов, не попавших в именованные поля.
const (
	PartSQLQuery = "sql-query"
	PartOther    = "other"
)

type RawPart struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// DecodedResult - нормализованный ответ оркестратора.
// Указатели nil, если префикс не встретился; срезы никогда не nil.
type DecodedResult struct {
	SQLQuery        *string   `json:"sqlQuery"`
	SQLResultsRaw   *string   `json:"sqlResultsRaw"`
	SQLResultsData  []Row     `json:"sqlResultsData"`
	RAGAnswer       *string   `json:"ragAnswer"`
	RAGConfidence   *string   `json:"ragConfidence"`
	ForecastModel   *string   `json:"forecastModel"`
	ForecastSummary *string   `json:"forecastSummary"`
	ForecastMetrics *string   `json:"forecastMetrics"`
	RawParts        []RawPart `json:"rawParts"`
}

// NewDecodedResult возвращает пустой результат со всеми срезами.
func NewDecodedResult() *DecodedResult {
	return &DecodedResult{
		SQLResultsData: []Row{},
		RawParts:       []RawPart{},
	}
}

type DirectResult struct {
	SQLQuery string `json:"sqlQuery"`
	Rows     []Row  `json:"rows"`
	RowCount int    `json:"rowCount"`
}

type OrchestratedResult struct {
	Decoded    *DecodedResult `json:"decoded"`
	AgentsUsed []string       `json:"agentsUsed"`
	// Success=false - мягкое предупреждение: частичный ответ агентов все равно полезен.
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// QueryResult - итог одной отправки. Заполнен ровно один из Direct/Orchestrated.
type QueryResult struct {
	ID           string              `json:"id"`
	Mode         QueryMode           `json:"mode"`
	Query        string              `json:"query"`
	CompletedAt  time.Time           `json:"completedAt"`
	Direct       *DirectResult       `json:"direct,omitempty"`
	Orchestrated *OrchestratedResult `json:"orchestrated,omitempty"`
}

// Warning возвращает текст мягкого предупреждения, если он есть.
func (r *QueryResult) Warning() string {
	if r != nil && r.Orchestrated != nil && !r.Orchestrated.Success {
		return "agents reported partial failure; showing recovered output"
	}
	return ""
}
