// Package batch provides the contiguous row-major tensors the control core
// operates on: one row per simulated vehicle instance, entries across rows
// fully independent.
package batch

import "math"

// Grid is an (Rows, Cols) matrix stored row-major in a single allocation.
// Row i is the per-instance vector of instance i.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

func New(rows, cols int) *Grid {
	return &Grid{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// Broadcast builds an (rows, len(vec)) grid with vec copied into every row.
func Broadcast(vec []float64, rows int) *Grid {
	g := New(rows, len(vec))
	for i := 0; i < rows; i++ {
		copy(g.Row(i), vec)
	}
	return g
}

// FromRows builds a grid from explicit per-instance rows. All rows must have
// equal length.
func FromRows(rows [][]float64) *Grid {
	if len(rows) == 0 {
		return New(0, 0)
	}
	g := New(len(rows), len(rows[0]))
	for i, r := range rows {
		copy(g.Row(i), r)
	}
	return g
}

func (g *Grid) At(i, j int) float64     { return g.Data[i*g.Cols+j] }
func (g *Grid) Set(i, j int, v float64) { g.Data[i*g.Cols+j] = v }

// Row returns instance i's vector as a view into the underlying storage.
func (g *Grid) Row(i int) []float64 {
	return g.Data[i*g.Cols : (i+1)*g.Cols]
}

func (g *Grid) Clone() *Grid {
	c := New(g.Rows, g.Cols)
	copy(c.Data, g.Data)
	return c
}

func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.Rows == o.Rows && g.Cols == o.Cols
}

// Clamp limits every entry to [lo, hi] in place and returns the receiver.
func (g *Grid) Clamp(lo, hi float64) *Grid {
	for i, v := range g.Data {
		if v < lo {
			g.Data[i] = lo
		} else if v > hi {
			g.Data[i] = hi
		}
	}
	return g
}

// ClampTo limits every entry element-wise to [lo, hi] grids of the same
// shape, in place.
func (g *Grid) ClampTo(lo, hi *Grid) *Grid {
	for i, v := range g.Data {
		if v < lo.Data[i] {
			g.Data[i] = lo.Data[i]
		} else if v > hi.Data[i] {
			g.Data[i] = hi.Data[i]
		}
	}
	return g
}

// ScatterRows overwrites the rows named by ids with vec. Rows not named are
// untouched. Out-of-range ids are a caller bug and panic via bounds checks.
func (g *Grid) ScatterRows(ids []int, vec []float64) {
	for _, id := range ids {
		copy(g.Row(id), vec)
	}
}

// IsValid reports whether the grid is free of NaN and Inf entries.
func (g *Grid) IsValid() bool {
	for _, v := range g.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
