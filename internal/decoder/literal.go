package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// Оркестратор печатает результаты SQL как литерал питоновского списка словарей:
// одинарные кавычки, None/True/False. Это не JSON, поэтому сначала переписываем текст.
//
// Кавычки меняются вслепую: значение с апострофом (O'Brien) ломает разбор,
// и такая строка целиком превращается в пустой результат. Так ведет себя
// и исходная панель, поведение оставлено намеренно.
var literalWords = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bNone\b`), "null"},
	{regexp.MustCompile(`\bTrue\b`), "true"},
	{regexp.MustCompile(`\bFalse\b`), "false"},
}

// literalOutcome - результат разбора: либо строки, либо ошибка. Третьего не бывает.
type literalOutcome interface {
	rows() []domain.Row
}

type literalRows []domain.Row

func (r literalRows) rows() []domain.Row { return r }

type literalFailure struct {
	err *domain.ParseError
}

func (literalFailure) rows() []domain.Row { return []domain.Row{} }

// ParseRows разбирает литерал в строки. Пустой ввод и любая ошибка дают пустой срез, не nil.
func ParseRows(raw string) []domain.Row {
	return parseLiteral(raw).rows()
}

// ParseRowsErr - то же самое, но с причиной отказа. Нужен для логов и отладки.
func ParseRowsErr(raw string) ([]domain.Row, error) {
	switch o := parseLiteral(raw).(type) {
	case literalFailure:
		return o.rows(), o.err
	default:
		return o.rows(), nil
	}
}

func parseLiteral(raw string) literalOutcome {
	if strings.TrimSpace(raw) == "" {
		return literalRows{}
	}

	cleaned := strings.ReplaceAll(raw, "'", `"`)
	for _, w := range literalWords {
		cleaned = w.re.ReplaceAllString(cleaned, w.repl)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return literalFailure{err: &domain.ParseError{Input: raw, Err: err}}
	}
	// хвост после массива - тоже ошибка, частичный результат не отдаем
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return literalFailure{err: &domain.ParseError{Input: raw, Err: fmt.Errorf("trailing data after array")}}
	}

	out := make(literalRows, 0, len(items))
	for i, item := range items {
		if item == nil {
			return literalFailure{err: &domain.ParseError{Input: raw, Err: fmt.Errorf("element %d is not an object", i)}}
		}
		out = append(out, item)
	}
	return out
}
