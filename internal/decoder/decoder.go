// Package decoder разбирает текстовый ответ координатора агентов в DecodedResult.
//
// Ответ - сегменты через " | ". Каждый сегмент проверяется по таблице префиксов
// сверху вниз, первое совпадение забирает сегмент целиком. Порядок таблицы
// важен: "[SQL] Query:" стоит раньше "SQL:".
package decoder

import (
	"strings"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// Delimiter разделяет сегменты ответа.
const Delimiter = " | "

// Rule - строка таблицы разбора.
type Rule struct {
	Prefix string
	Apply  func(res *domain.DecodedResult, value string)
}

var rules = []Rule{
	{Prefix: "[SQL] Query:", Apply: func(r *domain.DecodedResult, v string) {
		r.RawParts = append(r.RawParts, domain.RawPart{Kind: domain.PartSQLQuery, Content: v})
	}},
	{Prefix: "SQL:", Apply: func(r *domain.DecodedResult, v string) { r.SQLQuery = &v }},
	{Prefix: "Results:", Apply: func(r *domain.DecodedResult, v string) {
		r.SQLResultsRaw = &v
		r.SQLResultsData = ParseRows(v)
	}},
	{Prefix: "[RAG] Answer:", Apply: func(r *domain.DecodedResult, v string) { r.RAGAnswer = &v }},
	// Confidence остается строкой для показа, число не парсим
	{Prefix: "Confidence:", Apply: func(r *domain.DecodedResult, v string) { r.RAGConfidence = &v }},
	{Prefix: "[Forecast] Best Model:", Apply: func(r *domain.DecodedResult, v string) { r.ForecastModel = &v }},
	{Prefix: "Summary:", Apply: func(r *domain.DecodedResult, v string) { r.ForecastSummary = &v }},
	{Prefix: "Metrics:", Apply: func(r *domain.DecodedResult, v string) { r.ForecastMetrics = &v }},
}

// Rules возвращает копию таблицы в порядке применения.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Decode - тотальная функция: для любой строки возвращает заполненный результат и не паникует.
// Повтор префикса перезаписывает прежнее значение.
func Decode(response string) *domain.DecodedResult {
	res := domain.NewDecodedResult()
	if response == "" {
		return res
	}

	for _, segment := range strings.Split(response, Delimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		applySegment(res, segment)
	}
	return res
}

func applySegment(res *domain.DecodedResult, segment string) {
	for _, rule := range rules {
		if rest, ok := strings.CutPrefix(segment, rule.Prefix); ok {
			rule.Apply(res, strings.TrimSpace(rest))
			return
		}
	}
	res.RawParts = append(res.RawParts, domain.RawPart{Kind: domain.PartOther, Content: segment})
}

// Encode собирает ответ из сегментов: обратная операция для тестов и мок-сервера.
func Encode(segments ...string) string {
	return strings.Join(segments, Delimiter)
}
