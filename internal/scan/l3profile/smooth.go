package l3profile

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// SmoothOptions configures Smooth.
type SmoothOptions struct {
	// Sigma is the Gaussian standard deviation in cells, applied to both
	// axes. Zero disables smoothing.
	Sigma float64
	// WrapColumns treats the angular axis as periodic so the kernel crosses
	// the 0/2π seam. When false both axes use half-sample reflection.
	WrapColumns bool
}

// truncate matches the conventional 4σ Gaussian support.
const truncate = 4.0

// MaxSigma is the largest accepted smoothing sigma, in cells.
const MaxSigma = 16.0

// maxSmoothOps bounds cells times kernel area for one Smooth call.
const maxSmoothOps = 1 << 30

// Smooth returns a Gaussian-smoothed copy of g. Missing neighbours are left
// out of the weighted average and the remaining weights are renormalised;
// missing cells stay missing.
func Smooth(g *scan.RadiusGrid, opts SmoothOptions) (*scan.RadiusGrid, error) {
	if math.IsNaN(opts.Sigma) || opts.Sigma < 0 || opts.Sigma > MaxSigma {
		return nil, fmt.Errorf("%w: sigma %v (want 0..%v)", scan.ErrInvalidConfig, opts.Sigma, MaxSigma)
	}
	if opts.Sigma == 0 {
		return g.Clone(), nil
	}

	kernel := gaussianKernel(opts.Sigma)
	radius := len(kernel) / 2
	if rows, cols := g.Dims(); rows*cols > maxSmoothOps/(len(kernel)*len(kernel)) {
		return nil, fmt.Errorf("%w: sigma %v over a %dx%d grid is too expensive",
			scan.ErrInvalidConfig, opts.Sigma, rows, cols)
	}
	colIndex := reflectIndex
	if opts.WrapColumns {
		colIndex = wrapIndex
	}

	rows, cols := g.Dims()
	out, err := scan.NewRadiusGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !g.Valid(i, j) {
				out.SetMissing(i, j)
				continue
			}
			var acc, wsum float64
			for di := -radius; di <= radius; di++ {
				ii := reflectIndex(i+di, rows)
				wi := kernel[di+radius]
				for dj := -radius; dj <= radius; dj++ {
					r, ok := g.At(ii, colIndex(j+dj, cols))
					if !ok {
						continue
					}
					w := wi * kernel[dj+radius]
					acc += w * r
					wsum += w
				}
			}
			out.Set(i, j, acc/wsum)
		}
	}
	return out, nil
}

// gaussianKernel returns normalised 1D weights over [-R, R] with
// R = int(4σ + 0.5).
func gaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	for x := -radius; x <= radius; x++ {
		k[x+radius] = math.Exp(-0.5 * float64(x*x) / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflectIndex maps i into [0, n) with half-sample symmetric padding:
// (d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
