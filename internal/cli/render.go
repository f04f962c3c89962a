package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/xela07ax/ricemarket-console/internal/console/service"
	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// Форматы вывода
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderRows печатает строки результата в колонках cols.
func renderRows(w io.Writer, cols []string, rows []domain.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w)
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

type kv struct {
	key   string
	value any
}

func renderKV(w io.Writer, pairs ...kv) {
	t := newTable(w)
	for _, p := range pairs {
		t.AppendRow(table.Row{p.key, formatValue(p.value)})
	}
	t.Render()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case *string:
		if x == nil {
			return "NULL"
		}
		return *x
	case float64:
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// renderQuery печатает только видимые секции, в порядке страницы: SQL, RAG, прогноз, таблица.
func renderQuery(w io.Writer, v *service.QueryView) {
	if v.Warning != "" {
		_, _ = fmt.Fprintf(w, "warning: %s\n", v.Warning)
	}
	res := v.Result
	if res == nil {
		_, _ = fmt.Fprintln(w, "(no result)")
		return
	}

	switch {
	case res.Direct != nil:
		if v.Sections.SQL {
			_, _ = fmt.Fprintf(w, "SQL: %s\n", res.Direct.SQLQuery)
		}
	case res.Orchestrated != nil:
		d := res.Orchestrated.Decoded
		_, _ = fmt.Fprintf(w, "Agents: %s\n", strings.Join(res.Orchestrated.AgentsUsed, ", "))
		if v.Sections.SQL {
			_, _ = fmt.Fprintf(w, "SQL: %s\n", *d.SQLQuery)
		}
		if v.Sections.RAG {
			pairs := []kv{{"Answer", d.RAGAnswer}}
			if d.RAGConfidence != nil {
				pairs = append(pairs, kv{"Confidence", d.RAGConfidence})
			}
			renderKV(w, pairs...)
		}
		if v.Sections.Forecast {
			renderKV(w,
				kv{"Best model", d.ForecastModel},
				kv{"Summary", d.ForecastSummary},
				kv{"Metrics", d.ForecastMetrics})
		}
		if v.Sections.RawParts {
			for _, p := range d.RawParts {
				_, _ = fmt.Fprintf(w, "[%s] %s\n", p.Kind, p.Content)
			}
		}
	}

	renderRows(w, v.Columns, v.Rows)
}

func renderHealth(w io.Writer, services []domain.ServiceHealth) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Service", "State", "Checked"})
	for _, s := range services {
		checked := "-"
		if !s.CheckedAt.IsZero() {
			checked = s.CheckedAt.Format("15:04:05")
		}
		t.AppendRow(table.Row{s.Name, string(s.State), checked})
	}
	t.Render()
}

func renderStats(w io.Writer, s *service.StatsView) {
	if s.Warning != "" {
		_, _ = fmt.Fprintf(w, "warning: %s\n", s.Warning)
	}
	renderKV(w,
		kv{"Current price", fmt.Sprintf("$%.2f/kg", s.CurrentPrice)},
		kv{"Price change", fmt.Sprintf("%+.1f%%", s.PriceChange)},
		kv{"Inventory movements", s.TotalInventory},
		kv{"Active suppliers", s.ActiveSuppliers},
		kv{"Shipments", s.RecentTransactions},
		kv{"Last updated", s.LastUpdated},
		kv{"Source", s.Source})
}

func renderForecast(w io.Writer, f *service.ForecastView) {
	_, _ = fmt.Fprintf(w, "Current price: $%.2f/kg  Best model: %s\n", f.CurrentPrice, f.BestModel)
	t := newTable(w)
	t.AppendHeader(table.Row{"Month", "Price", "Confidence"})
	for _, p := range f.Predictions {
		t.AppendRow(table.Row{p.Month, fmt.Sprintf("%.2f", p.Price), fmt.Sprintf("%.0f%%", p.Confidence*100)})
	}
	t.Render()
}

func renderSearch(w io.Writer, r *domain.SearchResult) {
	renderKV(w,
		kv{"Answer", r.Answer},
		kv{"Confidence", fmt.Sprintf("%.0f%%", r.Confidence*100)})

	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Score", "Excerpt"})
	for _, s := range r.Sources {
		t.AppendRow(table.Row{s.Source, fmt.Sprintf("%.2f", s.Score), s.Content})
	}
	t.Render()
}

func renderDocuments(w io.Writer, list *domain.DocumentList) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Document"})
	for _, s := range list.Sources {
		t.AppendRow(table.Row{s})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d documents)\n", list.Count)
}

// renderModels - таблица, если сервис вернул {"models": [...]}, иначе JSON как есть.
func renderModels(w io.Writer, raw json.RawMessage) error {
	var list struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(raw, &list); err != nil || len(list.Models) == 0 {
		return renderJSON(w, raw)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Model"})
	for _, m := range list.Models {
		t.AppendRow(table.Row{m})
	}
	t.Render()
	return nil
}

func renderAgents(w io.Writer, agents []domain.AgentInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Agent", "Status", "Description"})
	for _, a := range agents {
		t.AppendRow(table.Row{a.Name, a.Status, a.Description})
	}
	t.Render()
}
