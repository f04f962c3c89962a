package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/ricemarket-console/internal/cache"
	"github.com/xela07ax/ricemarket-console/internal/connectors"
	"github.com/xela07ax/ricemarket-console/internal/domain"
	"github.com/xela07ax/ricemarket-console/internal/infra"
)

// Вопросы к NL-SQL, из ответов которых собирается агрегат главной страницы.
const (
	QuestionAvgPrice  = "What is the average unit price from all contracts?"
	QuestionCustomers = "How many customers are in the database?"
	QuestionShipments = "How many shipments are there?"
	QuestionMovements = "How many inventory movements are there?"
	lastUpdatedLayout = "2006-01-02 15:04:05"
)

// SourceCached - агрегат прочитан из кэша без попытки обновления.
const SourceCached = "cached"

// StatsQuerier - то, что нужно сервису от NL-SQL.
type StatsQuerier interface {
	Query(ctx context.Context, question string) (*connectors.NLSQLResponse, error)
}

// StatsView - агрегат плюс сведения о его свежести.
type StatsView struct {
	domain.DashboardStats
	StoredAt time.Time `json:"storedAt"`
	Source   string    `json:"source"`
	Stale    bool      `json:"stale"`
	Warning  string    `json:"warning,omitempty"`
}

type DashboardService struct {
	sql         StatsQuerier
	cache       *cache.FreshnessCache[domain.DashboardStats]
	ttl         time.Duration
	priceChange float64
	now         func() time.Time
	logger      *zap.Logger
}

func NewDashboardService(
	sql StatsQuerier,
	c *cache.FreshnessCache[domain.DashboardStats],
	ttl time.Duration,
	priceChange float64,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		sql:         sql,
		cache:       c,
		ttl:         ttl,
		priceChange: priceChange,
		now:         time.Now,
		logger:      logger.Named("dashboard-service"),
	}
}

// Stats отдает агрегат из кэша, пересчитывая его, если запись протухла.
func (s *DashboardService) Stats(ctx context.Context) (*StatsView, error) {
	l, err := s.cache.GetOrRefresh(ctx, infra.DashboardStatsKey, s.ttl, s.Collect)
	if err != nil {
		return nil, err
	}

	v := &StatsView{
		DashboardStats: l.Value,
		StoredAt:       l.StoredAt,
		Source:         string(l.Outcome),
		Stale:          l.Stale(),
	}
	if l.Stale() {
		v.Warning = fmt.Sprintf("showing cached data: %v", l.RefreshErr)
	}
	return v, nil
}

// Cached - последний сохраненный агрегат без обращения к NL-SQL (ricectl stats --cached).
// Stale, если запись старше ttl.
func (s *DashboardService) Cached(ctx context.Context) (*StatsView, bool) {
	stats, storedAt, ok := s.cache.Peek(ctx, infra.DashboardStatsKey)
	if !ok {
		return nil, false
	}
	return &StatsView{
		DashboardStats: stats,
		StoredAt:       storedAt,
		Source:         SourceCached,
		Stale:          s.now().Sub(storedAt) >= s.ttl,
	}, true
}

// Warm - прогрев при старте, ошибка только в лог.
func (s *DashboardService) Warm(ctx context.Context) error {
	if _, err := s.cache.GetOrRefresh(ctx, infra.DashboardStatsKey, s.ttl, s.Collect); err != nil {
		s.logger.Warn("dashboard warm-up failed", zap.Error(err))
		return err
	}
	return nil
}

// Collect задает четыре вопроса параллельно и собирает агрегат.
// Сбой транспорта или ошибка сервиса валит весь сбор,
// success=false оставляет поле нулем.
func (s *DashboardService) Collect(ctx context.Context) (domain.DashboardStats, error) {
	var (
		mu    sync.Mutex
		stats = domain.DashboardStats{PriceChange: s.priceChange}
	)

	g, gctx := errgroup.WithContext(ctx)
	ask := func(question string, apply func(v any)) {
		g.Go(func() error {
			resp, err := s.sql.Query(gctx, question)
			if err != nil {
				return fmt.Errorf("dashboard %q: %w", question, err)
			}
			v, ok := firstValue(resp)
			if !ok {
				s.logger.Debug("no value for dashboard question", zap.String("question", question))
				return nil
			}
			mu.Lock()
			apply(v)
			mu.Unlock()
			return nil
		})
	}

	ask(QuestionAvgPrice, func(v any) { stats.CurrentPrice = parseFloat(v) })
	ask(QuestionCustomers, func(v any) { stats.ActiveSuppliers = parseInt(v) })
	ask(QuestionShipments, func(v any) { stats.RecentTransactions = parseInt(v) })
	ask(QuestionMovements, func(v any) { stats.TotalInventory = parseInt(v) })

	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}

	stats.LastUpdated = s.now().Format(lastUpdatedLayout)
	return stats, nil
}

// firstValue - первое значение первой строки. Порядок колонок в map не
// сохраняется, поэтому при нескольких колонках берем первую по алфавиту.
func firstValue(resp *connectors.NLSQLResponse) (any, bool) {
	if resp == nil || !resp.Success || len(resp.Results) == 0 {
		return nil, false
	}
	row := resp.Results[0]
	if len(row) == 0 {
		return nil, false
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return row[keys[0]], true
}

func parseFloat(v any) float64 {
	f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseInt отбрасывает дробную часть, как это делает панель.
func parseInt(v any) int64 {
	s := fmt.Sprint(v)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return int64(math.Trunc(parseFloat(s)))
}
