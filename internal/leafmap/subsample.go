package leafmap

import (
	"math"

	"github.com/rtm0/sstmap/internal/sst"
)

// Stride returns the step that keeps n samples at or below roughly maxSamples.
func Stride(n, maxSamples int) int {
	if maxSamples <= 0 {
		return 1
	}
	return max(1, n/maxSamples)
}

// Subsample keeps every rowStep-th row and colStep-th column of g, starting
// at 0. Non-finite values become NaN.
func Subsample(g *sst.Grid, rowStep, colStep int) *sst.Grid {
	rows := (g.Rows + rowStep - 1) / rowStep
	cols := (g.Cols + colStep - 1) / colStep
	out := sst.NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := g.At(r*rowStep, c*colStep)
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			out.Set(r, c, v)
		}
	}
	return out
}

func strideAxis(xs []float64, step int) []float64 {
	out := make([]float64, 0, (len(xs)+step-1)/step)
	for i := 0; i < len(xs); i += step {
		out = append(out, xs[i])
	}
	return out
}
