package domain

import "encoding/json"

// Forecast - нормализованный ответ /forecast/compare-all.
type Forecast struct {
	BestModel       string          `json:"bestModel"`
	ComparisonTable json.RawMessage `json:"comparisonTable,omitempty"` // форма зависит от модели, отдаем как есть
	Predictions     []float64       `json:"predictions"`
}

type Prediction struct {
	Month      string  `json:"month"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

// Source - документ, найденный RAG.
type Source struct {
	Source  string  `json:"source"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

type SearchResult struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	QueryType  string   `json:"queryType,omitempty"`
	Sources    []Source `json:"sources"`
}

type UploadResult struct {
	Name          string `json:"name"`
	Success       bool   `json:"success"`
	ChunksIndexed int    `json:"chunksIndexed"`
}

type DocumentList struct {
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
}
