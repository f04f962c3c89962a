package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/chart"
	"github.com/xela07ax/ricemarket-console/internal/connectors"
	"github.com/xela07ax/ricemarket-console/internal/domain"
)

const (
	DefaultHorizon   = 6
	MaxHorizon       = 12
	DefaultFrequency = "D"
	DefaultModel     = "ensemble"
)

// SampleHistory - ряд цен, который уходит в прогноз, если оператор не прислал свой.
var SampleHistory = []float64{45.5, 46.2, 44.8, 47.1, 46.5, 48.0, 47.3, 49.2, 48.5, 50.1, 49.8, 51.2}

type Forecaster interface {
	CompareAll(ctx context.Context, req connectors.ForecastRequest) (*domain.Forecast, error)
	Models(ctx context.Context) (json.RawMessage, error)
}

// Gate - проверка доступности сервиса (engine.HealthGate).
type Gate interface {
	Allow(service string) error
}

type ForecastInput struct {
	Data      []float64 `json:"data,omitempty"`
	Horizon   int       `json:"horizon,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
}

// ForecastView - все, что рисует страница прогноза.
type ForecastView struct {
	CurrentPrice    float64             `json:"currentPrice"`
	BestModel       string              `json:"bestModel"`
	Predictions     []domain.Prediction `json:"predictions"`
	ComparisonTable json.RawMessage     `json:"comparisonTable,omitempty"`
	PriceChart      chart.LineChart     `json:"priceChart"`
	PricePolyline   string              `json:"pricePolyline"` // атрибут points для <polyline>
	ConfidenceChart chart.BarChart      `json:"confidenceChart"`
}

type ForecastService struct {
	backend Forecaster
	gate    Gate
	now     func() time.Time
	logger  *zap.Logger
}

func NewForecastService(backend Forecaster, gate Gate, logger *zap.Logger) *ForecastService {
	return &ForecastService{
		backend: backend,
		gate:    gate,
		now:     time.Now,
		logger:  logger.Named("forecast-service"),
	}
}

func (s *ForecastService) Forecast(ctx context.Context, in ForecastInput) (*ForecastView, error) {
	req, err := normalizeForecast(in)
	if err != nil {
		return nil, err
	}
	if s.gate != nil {
		if err := s.gate.Allow(domain.ServiceForecast); err != nil {
			return nil, err
		}
	}

	f, err := s.backend.CompareAll(ctx, req)
	if err != nil {
		s.logger.Warn("forecast failed", zap.Int("horizon", req.Horizon), zap.Error(err))
		return nil, err
	}

	view := &ForecastView{
		CurrentPrice:    req.Data[len(req.Data)-1],
		BestModel:       f.BestModel,
		Predictions:     Predictions(f.Predictions, req.Horizon, s.now()),
		ComparisonTable: f.ComparisonTable,
	}
	if strings.TrimSpace(view.BestModel) == "" {
		view.BestModel = DefaultModel
	}

	prices := make(chart.Series, len(view.Predictions))
	confidence := make(chart.Series, len(view.Predictions))
	for i, p := range view.Predictions {
		label := p.Month[:3]
		prices[i] = chart.Point{Label: label, Value: p.Price}
		confidence[i] = chart.Point{Label: label, Value: math.Round(p.Confidence * 100)}
	}
	view.PriceChart = chart.Line(prices)
	view.PricePolyline = view.PriceChart.Polyline()
	view.ConfidenceChart = chart.Bars(confidence)

	s.logger.Debug("forecast ready",
		zap.String("model", view.BestModel),
		zap.Int("predictions", len(view.Predictions)))
	return view, nil
}

// Models - список моделей сервиса прогнозирования, отдаем как есть.
func (s *ForecastService) Models(ctx context.Context) (json.RawMessage, error) {
	if s.gate != nil {
		if err := s.gate.Allow(domain.ServiceForecast); err != nil {
			return nil, err
		}
	}
	return s.backend.Models(ctx)
}

func normalizeForecast(in ForecastInput) (connectors.ForecastRequest, error) {
	req := connectors.ForecastRequest{
		Data:      in.Data,
		Horizon:   in.Horizon,
		Frequency: strings.ToUpper(strings.TrimSpace(in.Frequency)),
	}
	if len(req.Data) == 0 {
		req.Data = SampleHistory
	}
	if req.Horizon == 0 {
		req.Horizon = DefaultHorizon
	}
	if req.Horizon < 1 || req.Horizon > MaxHorizon {
		return req, &domain.ValidationError{Field: "horizon", Message: fmt.Sprintf("must be between 1 and %d", MaxHorizon)}
	}
	switch req.Frequency {
	case "":
		req.Frequency = DefaultFrequency
	case "D", "W", "M":
	default:
		return req, &domain.ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown frequency %q", in.Frequency)}
	}
	return req, nil
}

// Predictions подписывает прогноз месяцами начиная со следующего за now.
// Доверие падает на 5 пунктов за шаг, но не ниже 0.5.
func Predictions(values []float64, horizon int, now time.Time) []domain.Prediction {
	n := min(horizon, len(values))
	out := make([]domain.Prediction, 0, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i+1, 0)
		out = append(out, domain.Prediction{
			Month:      month.Format("Jan 2006"),
			Price:      values[i],
			Confidence: math.Max(0.5, 0.95-0.05*float64(i)),
		})
	}
	return out
}
