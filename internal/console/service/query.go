package service

import (
	"context"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/domain"
	"github.com/xela07ax/ricemarket-console/internal/engine"
)

// Sections - какие блоки результата показывать.
type Sections struct {
	SQL      bool `json:"sql"`
	RAG      bool `json:"rag"`
	Forecast bool `json:"forecast"`
	Table    bool `json:"table"`
	RawParts bool `json:"rawParts"`
}

// QueryView - результат запроса в виде, готовом к отрисовке.
type QueryView struct {
	Result   *domain.QueryResult `json:"result"`
	Sections Sections            `json:"sections"`
	Columns  []string            `json:"columns"`
	Rows     []domain.Row        `json:"rows"`
	Warning  string              `json:"warning,omitempty"`
}

// BuildQueryView раскладывает результат по блокам. Секция агента видна, только
// если агент участвовал и его поле разобрано. Колонки таблицы - ключи первой
// строки по алфавиту.
func BuildQueryView(res *domain.QueryResult) *QueryView {
	v := &QueryView{Result: res, Columns: []string{}, Rows: []domain.Row{}}
	if res == nil {
		return v
	}
	v.Warning = res.Warning()

	switch {
	case res.Direct != nil:
		v.Sections.SQL = res.Direct.SQLQuery != ""
		v.Rows = res.Direct.Rows
	case res.Orchestrated != nil:
		o := res.Orchestrated
		d := o.Decoded
		if d == nil {
			d = domain.NewDecodedResult()
		}
		v.Sections.SQL = slices.Contains(o.AgentsUsed, domain.AgentSQL) && present(d.SQLQuery)
		v.Sections.RAG = slices.Contains(o.AgentsUsed, domain.AgentRAG) && present(d.RAGAnswer)
		v.Sections.Forecast = slices.Contains(o.AgentsUsed, domain.AgentForecast) && present(d.ForecastModel)
		v.Sections.RawParts = len(d.RawParts) > 0
		v.Rows = d.SQLResultsData
	}
	if v.Rows == nil {
		v.Rows = []domain.Row{}
	}

	v.Sections.Table = len(v.Rows) > 0
	if v.Sections.Table {
		v.Columns = Columns(v.Rows[0])
	}
	return v
}

// present - префикс встретился и после него есть текст. Пустой "SQL:" секцию не показывает.
func present(s *string) bool {
	return s != nil && *s != ""
}

func Columns(row domain.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Submitter - engine.QueryClient.
type Submitter interface {
	Submit(ctx context.Context, input string, mode domain.QueryMode, qctx map[string]any) (*domain.QueryResult, error)
	Board() *engine.ResultBoard
}

type AgentDirectory interface {
	Agents(ctx context.Context) ([]domain.AgentInfo, error)
	Status(ctx context.Context) (map[string]any, error)
}

type QueryService struct {
	client Submitter
	agents AgentDirectory
	logger *zap.Logger
}

func NewQueryService(client Submitter, agents AgentDirectory, logger *zap.Logger) *QueryService {
	return &QueryService{client: client, agents: agents, logger: logger.Named("query-service")}
}

func (s *QueryService) Submit(ctx context.Context, input string, mode domain.QueryMode, qctx map[string]any) (*QueryView, error) {
	res, err := s.client.Submit(ctx, input, mode, qctx)
	if err != nil {
		return nil, err
	}
	return BuildQueryView(res), nil
}

// LatestView - состояние экрана: последний результат, последняя ошибка.
type LatestView struct {
	View    *QueryView `json:"view"`
	Error   string     `json:"error,omitempty"`
	Pending int        `json:"pending"`
}

func (s *QueryService) Latest() LatestView {
	state := s.client.Board().Snapshot()
	return LatestView{
		View:    BuildQueryView(state.Result),
		Error:   state.Error,
		Pending: state.Pending,
	}
}

func (s *QueryService) Agents(ctx context.Context) ([]domain.AgentInfo, error) {
	return s.agents.Agents(ctx)
}

func (s *QueryService) AgentStatus(ctx context.Context) (map[string]any, error) {
	return s.agents.Status(ctx)
}
