package engine

import (
	"sync"
	"time"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// BoardState - то, что видит оператор: последний результат и последняя ошибка.
type BoardState struct {
	Result    *domain.QueryResult `json:"result"`
	Error     string              `json:"error,omitempty"`
	Warning   string              `json:"warning,omitempty"`
	Pending   int                 `json:"pending"`
	UpdatedAt time.Time           `json:"updatedAt,omitempty"`
}

// ResultBoard - состояние экрана запросов. Побеждает последний
// завершившийся вызов, а не последний отправленный: порядок записи
// равен порядку завершения. Ошибка не стирает прежний результат.
type ResultBoard struct {
	mu    sync.Mutex
	state BoardState
	now   func() time.Time
}

func NewResultBoard() *ResultBoard {
	return &ResultBoard{now: time.Now}
}

func (b *ResultBoard) begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Pending++
}

// complete фиксирует завершение вызова, начатого через begin.
func (b *ResultBoard) complete(res *domain.QueryResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Pending > 0 {
		b.state.Pending--
	}
	b.apply(res, err)
}

// reject - ошибка до отправки в сеть (валидация, сервис offline).
func (b *ResultBoard) reject(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(nil, err)
}

func (b *ResultBoard) apply(res *domain.QueryResult, err error) {
	b.state.UpdatedAt = b.now()
	if err != nil {
		b.state.Error = err.Error()
		return
	}
	b.state.Result = res
	b.state.Error = ""
	b.state.Warning = res.Warning()
}

func (b *ResultBoard) Snapshot() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
