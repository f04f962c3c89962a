// Package chart переводит ряды чисел в геометрию столбчатой и линейной диаграмм.
// Все функции чистые: геометрия считается заново на каждый вызов.
package chart

import (
	"math"
	"strconv"
	"strings"
)

// Размеры холста линейной диаграммы
const (
	Width   = 600.0
	Height  = 300.0
	Padding = 40.0

	ChartWidth  = Width - 2*Padding
	ChartHeight = Height - 2*Padding
)

// gridPercents - уровни горизонтальных линий сетки, снизу вверх.
var gridPercents = [...]int{0, 25, 50, 75, 100}

type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type Series []Point

func (s Series) max() float64 {
	if len(s) == 0 {
		return 0
	}
	m := s[0].Value
	for _, p := range s[1:] {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}

type Bar struct {
	Label         string  `json:"label"`
	Value         float64 `json:"value"`
	HeightPercent float64 `json:"heightPercent"`
}

// BarChart. Empty означает "нет данных": столбцов не рисуем вовсе.
type BarChart struct {
	Max   float64 `json:"max"`
	Bars  []Bar   `json:"bars"`
	Empty bool    `json:"empty"`
}

func Bars(series Series) BarChart {
	if len(series) == 0 {
		return BarChart{Bars: []Bar{}, Empty: true}
	}

	m := series.max()
	bars := make([]Bar, len(series))
	for i, p := range series {
		h := 0.0
		if m > 0 {
			h = p.Value / m * 100
		}
		bars[i] = Bar{Label: p.Label, Value: p.Value, HeightPercent: h}
	}
	return BarChart{Max: m, Bars: bars}
}

type LinePoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type Gridline struct {
	Percent int     `json:"percent"`
	Y       float64 `json:"y"`
	Label   int64   `json:"label"`
}

type LineChart struct {
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Padding   float64     `json:"padding"`
	Max       float64     `json:"max"`
	Points    []LinePoint `json:"points"`
	Gridlines []Gridline  `json:"gridlines"`
	Empty     bool        `json:"empty"`
}

func Line(series Series) LineChart {
	lc := LineChart{Width: Width, Height: Height, Padding: Padding}
	if len(series) == 0 {
		lc.Points = []LinePoint{}
		lc.Gridlines = []Gridline{}
		lc.Empty = true
		return lc
	}

	m := series.max()
	lc.Max = m

	n := len(series)
	lc.Points = make([]LinePoint, n)
	for i, p := range series {
		// одна точка: (i/(n-1)) дает 0/0, ставим ее к левому краю
		x := Padding
		if n > 1 {
			x = float64(i)/float64(n-1)*ChartWidth + Padding
		}
		// при max <= 0 точки ложатся на базовую линию
		y := Height - Padding
		if m > 0 {
			y = Height - Padding - p.Value/m*ChartHeight
		}
		lc.Points[i] = LinePoint{Label: p.Label, Value: p.Value, X: x, Y: y}
	}

	lc.Gridlines = make([]Gridline, len(gridPercents))
	for i, pct := range gridPercents {
		lc.Gridlines[i] = Gridline{
			Percent: pct,
			Y:       Padding + ChartHeight*float64(100-pct)/100,
			Label:   roundHalfUp(m * float64(pct) / 100),
		}
	}
	return lc
}

// Polyline - значение атрибута points для SVG <polyline>.
func (lc LineChart) Polyline() string {
	parts := make([]string, len(lc.Points))
	for i, p := range lc.Points {
		parts[i] = formatCoord(p.X) + "," + formatCoord(p.Y)
	}
	return strings.Join(parts, " ")
}

// roundHalfUp округляет .5 вверх, к +Inf (как Math.round в браузере).
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
