package chart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBars(t *testing.T) {
	t.Run("equal values are both full height", func(t *testing.T) {
		bc := Bars(Series{{Label: "a", Value: 5}, {Label: "b", Value: 5}})
		require.False(t, bc.Empty)
		require.Len(t, bc.Bars, 2)
		assert.Equal(t, 100.0, bc.Bars[0].HeightPercent)
		assert.Equal(t, 100.0, bc.Bars[1].HeightPercent)
	})

	t.Run("empty series is marked, not rendered", func(t *testing.T) {
		bc := Bars(nil)
		assert.True(t, bc.Empty)
		assert.Empty(t, bc.Bars)
	})

	t.Run("scaled against max", func(t *testing.T) {
		bc := Bars(Series{{Label: "a", Value: 25}, {Label: "b", Value: 100}, {Label: "c", Value: 50}})
		assert.Equal(t, 100.0, bc.Max)
		assert.Equal(t, 25.0, bc.Bars[0].HeightPercent)
		assert.Equal(t, 100.0, bc.Bars[1].HeightPercent)
		assert.Equal(t, 50.0, bc.Bars[2].HeightPercent)
	})

	t.Run("zero max gives zero heights", func(t *testing.T) {
		bc := Bars(Series{{Label: "a", Value: 0}, {Label: "b", Value: 0}})
		assert.False(t, bc.Empty)
		for _, b := range bc.Bars {
			assert.Zero(t, b.HeightPercent)
		}
	})
}

func TestLine_SinglePoint(t *testing.T) {
	lc := Line(Series{{Label: "Jan", Value: 42}})
	require.Len(t, lc.Points, 1)

	p := lc.Points[0]
	assert.False(t, math.IsNaN(p.X))
	assert.Equal(t, Padding, p.X)
	assert.Equal(t, Padding, p.Y, "the only point is also the max")
}

func TestLine_Geometry(t *testing.T) {
	lc := Line(Series{
		{Label: "Jan", Value: 0},
		{Label: "Feb", Value: 50},
		{Label: "Mar", Value: 100},
	})

	require.Len(t, lc.Points, 3)
	assert.Equal(t, 40.0, lc.Points[0].X)
	assert.Equal(t, 300.0, lc.Points[1].X)
	assert.Equal(t, 560.0, lc.Points[2].X)

	assert.Equal(t, 260.0, lc.Points[0].Y)
	assert.Equal(t, 150.0, lc.Points[1].Y)
	assert.Equal(t, 40.0, lc.Points[2].Y)

	assert.Equal(t, "40,260 300,150 560,40", lc.Polyline())
}

func TestLine_Gridlines(t *testing.T) {
	lc := Line(Series{{Label: "a", Value: 10}, {Label: "b", Value: 51.2}})

	require.Len(t, lc.Gridlines, 5)
	want := []Gridline{
		{Percent: 0, Y: 260, Label: 0},
		{Percent: 25, Y: 205, Label: 13},
		{Percent: 50, Y: 150, Label: 26},
		{Percent: 75, Y: 95, Label: 38},
		{Percent: 100, Y: 40, Label: 51},
	}
	assert.Equal(t, want, lc.Gridlines)
}

func TestLine_ZeroMaxStaysFinite(t *testing.T) {
	lc := Line(Series{{Label: "a", Value: 0}, {Label: "b", Value: 0}})
	for _, p := range lc.Points {
		assert.False(t, math.IsNaN(p.Y))
		assert.False(t, math.IsInf(p.Y, 0))
		assert.Equal(t, Height-Padding, p.Y)
	}
}

func TestLine_Empty(t *testing.T) {
	lc := Line(Series{})
	assert.True(t, lc.Empty)
	assert.Empty(t, lc.Points)
	assert.Equal(t, "", lc.Polyline())
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, int64(3), roundHalfUp(2.5))
	assert.Equal(t, int64(2), roundHalfUp(2.49))
	assert.Equal(t, int64(-2), roundHalfUp(-2.5))
}
