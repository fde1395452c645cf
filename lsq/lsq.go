/*Package lsq solves the box-constrained regularized least squares problems
at the heart of the spectral correction code,

	minimize  || A·x - b ||^2  +  lambda * || D·x ||^2
	subject to  lo <= x <= hi  (componentwise)

where D is a smoothing operator, typically the second-difference operator
across primaries.  The penalty discourages jagged primary vectors that would
otherwise result from fitting measurement noise; a flat vector pays no
penalty at all under the second-difference operator.

The solver forms the regularized normal equations and solves them exactly
when possible (interior solution), then polishes with projected coordinate
descent so the returned solution always respects the box.  For a strictly
convex quadratic this converges to the constrained optimum.
*/
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// sweep convergence: largest single-element move in one pass
	tol       = 1e-12
	maxSweeps = 10000
)

// ErrBadBounds is returned when lo > hi for any element.
var ErrBadBounds = errors.New("lower bound exceeds upper bound")

// SecondDifference returns the (n-2) x n second-difference operator, the
// discrete analog of a second derivative across the primary index.  For
// n < 3 it returns a 1 x n zero operator (no curvature to penalize).
func SecondDifference(n int) *mat.Dense {
	if n < 3 {
		return mat.NewDense(1, n, nil)
	}
	d := mat.NewDense(n-2, n, nil)
	for i := 0; i < n-2; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}
	return d
}

// SolveBox minimizes ||A·x - b||^2 + lambda*||D·x||^2 subject to
// lo <= x <= hi.  D may be nil, in which case the second-difference
// operator is used when lambda > 0.  Dimension mismatches and inverted
// bounds are errors; an all-zero column of A with no penalty leaves that
// element at the nearest bound to zero.
func SolveBox(a mat.Matrix, b []float64, d mat.Matrix, lambda float64, lo, hi []float64) ([]float64, error) {
	rows, cols := a.Dims()
	if len(b) != rows {
		return nil, fmt.Errorf("lsq: A is %dx%d but b has length %d", rows, cols, len(b))
	}
	if len(lo) != cols || len(hi) != cols {
		return nil, fmt.Errorf("lsq: bounds have lengths %d, %d, want %d", len(lo), len(hi), cols)
	}
	for i := range lo {
		if lo[i] > hi[i] {
			return nil, ErrBadBounds
		}
	}
	if d == nil && lambda > 0 {
		d = SecondDifference(cols)
	}

	// normal matrix N = A'A + lambda*D'D and rhs c = A'b
	n := mat.NewDense(cols, cols, nil)
	n.Mul(a.T(), a)
	if lambda > 0 {
		p := mat.NewDense(cols, cols, nil)
		p.Mul(d.T(), d)
		p.Scale(lambda, p)
		n.Add(n, p)
	}
	bv := mat.NewVecDense(rows, b)
	c := mat.NewVecDense(cols, nil)
	c.MulVec(a.T(), bv)

	// unconstrained warm start; a singular normal matrix just means we
	// start descent from zero instead
	x := make([]float64, cols)
	xv := mat.NewVecDense(cols, nil)
	if err := xv.SolveVec(n, c); err == nil {
		copy(x, xv.RawVector().Data)
	}
	clampInto(x, lo, hi)

	// projected coordinate descent onto the box
	for sweep := 0; sweep < maxSweeps; sweep++ {
		moved := 0.0
		for j := 0; j < cols; j++ {
			njj := n.At(j, j)
			if njj <= 0 {
				// dead coordinate, nothing constrains it
				continue
			}
			// gradient component: N_j·x - c_j
			g := -c.AtVec(j)
			for k := 0; k < cols; k++ {
				g += n.At(j, k) * x[k]
			}
			next := clamp(x[j]-g/njj, lo[j], hi[j])
			if diff := math.Abs(next - x[j]); diff > moved {
				moved = diff
			}
			x[j] = next
		}
		if moved < tol {
			break
		}
	}
	return x, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInto(x, lo, hi []float64) {
	for i := range x {
		x[i] = clamp(x[i], lo[i], hi[i])
	}
}

// Residual returns A·x - b.
func Residual(a mat.Matrix, x, b []float64) []float64 {
	rows, cols := a.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		s := -b[i]
		for j := 0; j < cols; j++ {
			s += a.At(i, j) * x[j]
		}
		out[i] = s
	}
	return out
}
