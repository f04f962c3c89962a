package connectors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// MockServer имитирует все четыре бэкенда на одном обработчике:
// демо-режим консоли и тесты. Пути сервисов не пересекаются, кроме /health.
type MockServer struct {
	mu        sync.Mutex
	documents map[string]int // имя -> число чанков
}

func NewMockServer() *MockServer {
	return &MockServer{documents: map[string]int{
		"rice_market_report_2024.pdf": 42,
		"export_regulations.md":       7,
	}}
}

// MockResponse - ответ координатора, который отдает имитатор.
const MockResponse = "SQL: SELECT region, AVG(unit_price) AS avg_price FROM contracts GROUP BY region" +
	" | Results: [{'region': 'Punjab', 'avg_price': 48.5, 'organic': True}, {'region': 'Mekong', 'avg_price': 46.2, 'organic': False}]" +
	" | [RAG] Answer: Basmati prices rose on strong export demand" +
	" | Confidence: 0.87" +
	" | [Forecast] Best Model: ensemble" +
	" | Summary: Prices expected to rise 3% next quarter" +
	" | Metrics: MAPE 2.1%"

func (m *MockServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeMockJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireBearer)

		// NL-SQL
		r.Post("/query", m.nlQuery)

		// Координатор агентов
		r.Post("/execute", m.execute)
		r.Get("/agents", m.agents)
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeMockJSON(w, http.StatusOK, map[string]any{"status": "running", "active_agents": 3})
		})

		// RAG
		r.Route("/rag", func(r chi.Router) {
			r.Post("/query", m.ragQuery)
			r.Post("/upload", m.upload)
			r.Get("/documents", m.listDocuments)
			r.Delete("/documents", m.deleteAll)
			r.Delete("/documents/{name}", m.deleteDocument)
			r.Get("/stats", m.stats)
		})

		// Прогнозирование
		r.Post("/forecast/compare-all", m.compareAll)
		r.Get("/models", func(w http.ResponseWriter, _ *http.Request) {
			writeMockJSON(w, http.StatusOK, map[string]any{"models": []string{"arima", "prophet", "lstm", "ensemble"}})
		})
	})

	return r
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeMockJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockServer) nlQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeMockJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "question is required"})
		return
	}

	q := strings.ToLower(req.Question)
	var sql string
	var rows []map[string]any
	switch {
	case strings.Contains(q, "unsupported"):
		writeMockJSON(w, http.StatusOK, map[string]any{
			"question": req.Question, "success": false, "error": "could not map question to schema",
		})
		return
	case strings.Contains(q, "average unit price"):
		sql, rows = "SELECT AVG(unit_price) FROM contracts", []map[string]any{{"avg": 48.5}}
	case strings.Contains(q, "customers"):
		sql, rows = "SELECT COUNT(*) FROM customers", []map[string]any{{"count": 42}}
	case strings.Contains(q, "shipments"):
		sql, rows = "SELECT COUNT(*) FROM shipments", []map[string]any{{"count": 128}}
	case strings.Contains(q, "inventory movements"):
		sql, rows = "SELECT COUNT(*) FROM inventory_movements", []map[string]any{{"count": 1024}}
	default:
		sql = "SELECT variety, unit_price FROM contracts ORDER BY unit_price DESC LIMIT 3"
		rows = []map[string]any{
			{"variety": "Basmati", "unit_price": 52.1},
			{"variety": "Jasmine", "unit_price": 49.8},
			{"variety": "Arborio", "unit_price": 47.3},
		}
	}

	writeMockJSON(w, http.StatusOK, map[string]any{
		"question":  req.Question,
		"sql_query": sql,
		"results":   rows,
		"row_count": len(rows),
		"success":   true,
	})
}

func (m *MockServer) execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string         `json:"query"`
		Context map[string]any `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeMockJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "query is required"})
		return
	}

	success := !strings.Contains(strings.ToLower(req.Query), "partial")
	writeMockJSON(w, http.StatusOK, map[string]any{
		"response":    MockResponse,
		"agents_used": []string{"sql_agent", "rag_agent", "forecast_agent"},
		"success":     success,
	})
}

func (m *MockServer) agents(w http.ResponseWriter, _ *http.Request) {
	writeMockJSON(w, http.StatusOK, map[string]any{"agents": []map[string]any{
		{"name": "sql_agent", "description": "Answers questions over the trading database", "capabilities": []string{"sql"}, "status": "active"},
		{"name": "rag_agent", "description": "Searches indexed market documents", "capabilities": []string{"search"}, "status": "active"},
		{"name": "forecast_agent", "description": "Forecasts rice prices", "capabilities": []string{"forecast"}, "status": "active"},
	}})
}

func (m *MockServer) ragQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeMockJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "query is required"})
		return
	}

	docs := []map[string]any{
		{"metadata": map[string]string{"source": "rice_market_report_2024.pdf", "content": "Export demand for basmati grew 12% year over year."}, "score": 0.91},
		{"metadata": map[string]string{"source": "export_regulations.md", "content": "Minimum export price was lifted in October."}, "score": 0.74},
	}
	if req.MaxResults > 0 && req.MaxResults < len(docs) {
		docs = docs[:req.MaxResults]
	}
	writeMockJSON(w, http.StatusOK, map[string]any{
		"answer":              "Basmati prices rose on strong export demand and a lifted export floor.",
		"retrieved_documents": docs,
		"confidence":          0.87,
		"query_type":          "factual",
	})
}

func (m *MockServer) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMockJSON(w, http.StatusBadRequest, map[string]string{"detail": "file field is required"})
		return
	}
	defer file.Close()

	n, _ := io.Copy(io.Discard, file)
	if n == 0 {
		writeMockJSON(w, http.StatusOK, map[string]any{"success": false, "chunks_indexed": 0})
		return
	}
	chunks := int(n/500) + 1

	m.mu.Lock()
	m.documents[header.Filename] = chunks
	m.mu.Unlock()

	writeMockJSON(w, http.StatusOK, map[string]any{"success": true, "chunks_indexed": chunks})
}

func (m *MockServer) listDocuments(w http.ResponseWriter, _ *http.Request) {
	writeMockJSON(w, http.StatusOK, map[string]any{"count": len(m.names()), "sources": m.names()})
}

func (m *MockServer) deleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	m.mu.Lock()
	_, ok := m.documents[name]
	delete(m.documents, name)
	m.mu.Unlock()

	if !ok {
		writeMockJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("Document %s not found", name)})
		return
	}
	writeMockJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": name})
}

func (m *MockServer) deleteAll(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	n := len(m.documents)
	m.documents = map[string]int{}
	m.mu.Unlock()

	writeMockJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_count": n})
}

func (m *MockServer) stats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	chunks := 0
	for _, c := range m.documents {
		chunks += c
	}
	docs := len(m.documents)
	m.mu.Unlock()

	writeMockJSON(w, http.StatusOK, map[string]any{"documents": docs, "chunks": chunks})
}

func (m *MockServer) compareAll(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		writeMockJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "data must not be empty"})
		return
	}

	last := req.Data[len(req.Data)-1]
	preds := make([]float64, req.Horizon)
	for i := range preds {
		preds[i] = last + 0.4*float64(i+1)
	}

	writeMockJSON(w, http.StatusOK, map[string]any{
		"best_model": "ensemble",
		"comparison_table": []map[string]any{
			{"model": "arima", "mape": 3.4, "rmse": 1.9},
			{"model": "prophet", "mape": 2.8, "rmse": 1.6},
			{"model": "ensemble", "mape": 2.1, "rmse": 1.2},
		},
		"detailed_results": map[string]any{"predictions": preds},
	})
}

func (m *MockServer) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.documents))
	for n := range m.documents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func writeMockJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
