package sst

// Grid is a two-dimensional slice of a field stored in row-major order.
// Rows run along latitude, columns along longitude. Missing values are NaN.
type Grid struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewGrid allocates a rows x cols grid of zeros.
func NewGrid(rows, cols int) *Grid {
	return &Grid{
		Rows:   rows,
		Cols:   cols,
		Values: make([]float64, rows*cols),
	}
}

// At returns the value at row r, column c.
func (g *Grid) At(r, c int) float64 {
	return g.Values[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g *Grid) Set(r, c int, v float64) {
	g.Values[r*g.Cols+c] = v
}
