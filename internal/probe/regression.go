package probe

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MinSamples is the smallest dataset Fit and ConfidenceInterval accept.
// Two parameters are estimated, so n-2 must stay positive.
const MinSamples = 3

// Model is a fitted line effort = Intercept + Slope*size.
type Model struct {
	Intercept   float64 `json:"intercept"`
	Slope       float64 `json:"slope"`
	Correlation float64 `json:"correlation"`
}

// Fit computes the least-squares line through d.
//
// The slope is cov(x,y)/var(x), the intercept mean(y) - slope*mean(x) and
// the correlation Pearson's r. When every effort is identical r is
// undefined and reported as 0.
//
// It returns ErrDegenerateInput when d has fewer than MinSamples samples or
// when all sizes are identical, and ErrInvalidParameter when a sample is not
// finite or the sums overflow.
func Fit(d Dataset) (Model, error) {
	if err := checkFittable(d); err != nil {
		return Model{}, err
	}
	xs, ys := d.Sizes(), d.Efforts()

	meanX, varX := stat.MeanVariance(xs, nil)
	if varX == 0 {
		return Model{}, fmt.Errorf("%w: size variance is zero", ErrDegenerateInput)
	}
	if !isFinite(varX) {
		return Model{}, fmt.Errorf("%w: size variance overflows", ErrInvalidParameter)
	}
	meanY := stat.Mean(ys, nil)
	cov := stat.Covariance(xs, ys, nil)

	slope := cov / varX
	m := Model{
		Intercept: meanY - slope*meanX,
		Slope:     slope,
	}
	if sdY := stat.StdDev(ys, nil); sdY != 0 {
		m.Correlation = cov / (stat.StdDev(xs, nil) * sdY)
	}
	if !isFinite(m.Intercept) || !isFinite(m.Slope) || !isFinite(m.Correlation) {
		return Model{}, fmt.Errorf("%w: regression overflowed (%v)", ErrInvalidParameter, m)
	}
	return m, nil
}

// Predict returns the point estimate for size x. No range check is made.
func (m Model) Predict(x float64) float64 {
	return m.Intercept + m.Slope*x
}

// RSquared is the coefficient of determination r².
func (m Model) RSquared() float64 {
	return m.Correlation * m.Correlation
}

// String renders the fitted line.
func (m Model) String() string {
	return fmt.Sprintf("effort = %.4f + %.6f * size", m.Intercept, m.Slope)
}

// FittedValues returns ŷᵢ for every sample, in dataset order.
func FittedValues(d Dataset, m Model) []float64 {
	fitted := make([]float64, len(d))
	for i, s := range d {
		fitted[i] = m.Predict(s.Size)
	}
	return fitted
}

// Residuals returns yᵢ - ŷᵢ for every sample, in dataset order.
func Residuals(d Dataset, m Model) []float64 {
	res := d.Efforts()
	floats.Sub(res, FittedValues(d, m))
	return res
}

func checkFittable(d Dataset) error {
	if len(d) < MinSamples {
		return fmt.Errorf("%w: need at least %d samples, got %d", ErrDegenerateInput, MinSamples, len(d))
	}
	if err := checkFinite(d); err != nil {
		return err
	}
	xs := d.Sizes()
	if floats.Min(xs) == floats.Max(xs) {
		return fmt.Errorf("%w: all sizes equal %v", ErrDegenerateInput, xs[0])
	}
	return nil
}
