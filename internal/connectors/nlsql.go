package connectors

import (
	"context"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// NLSQLResponse - ответ POST /query сервиса NL-SQL.
type NLSQLResponse struct {
	Question string       `json:"question"`
	SQLQuery string       `json:"sql_query"`
	Results  []domain.Row `json:"results"`
	RowCount int          `json:"row_count"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
}

type NLSQLClient struct {
	*baseClient
}

func NewNLSQLClient(baseURL string, o Options) *NLSQLClient {
	return &NLSQLClient{baseClient: newBaseClient(domain.ServiceNLSQL, baseURL, o)}
}

// Query переводит вопрос на естественном языке в SQL и выполняет его.
// success=false возвращается как есть, решение принимает вызывающий.
func (c *NLSQLClient) Query(ctx context.Context, question string) (*NLSQLResponse, error) {
	var resp NLSQLResponse
	if err := c.doJSON(ctx, http.MethodPost, "/query", map[string]string{"question": question}, &resp, ""); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []domain.Row{}
	}
	return &resp, nil
}
