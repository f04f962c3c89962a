package connectors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// ForecastRequest - тело POST /forecast/compare-all.
type ForecastRequest struct {
	Data      []float64 `json:"data"`
	Horizon   int       `json:"horizon"`
	Frequency string    `json:"frequency"`
}

type compareAllResponse struct {
	BestModel       string          `json:"best_model"`
	ComparisonTable json.RawMessage `json:"comparison_table"`
	DetailedResults struct {
		Predictions []float64 `json:"predictions"`
	} `json:"detailed_results"`
}

type ForecastClient struct {
	*baseClient
}

func NewForecastClient(baseURL string, o Options) *ForecastClient {
	return &ForecastClient{baseClient: newBaseClient(domain.ServiceForecast, baseURL, o)}
}

// CompareAll прогоняет ряд через все модели и возвращает лучшую.
func (c *ForecastClient) CompareAll(ctx context.Context, req ForecastRequest) (*domain.Forecast, error) {
	var resp compareAllResponse
	if err := c.doJSON(ctx, http.MethodPost, "/forecast/compare-all", req, &resp, ""); err != nil {
		return nil, err
	}

	f := &domain.Forecast{
		BestModel:   resp.BestModel,
		Predictions: resp.DetailedResults.Predictions,
	}
	if len(resp.ComparisonTable) > 0 && string(resp.ComparisonTable) != "null" {
		f.ComparisonTable = resp.ComparisonTable
	}
	if f.Predictions == nil {
		f.Predictions = []float64{}
	}
	return f, nil
}

// Models - доступные модели прогнозирования (GET /models), форма не фиксирована.
func (c *ForecastClient) Models(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, &resp, ""); err != nil {
		return nil, err
	}
	return resp, nil
}
