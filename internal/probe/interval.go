package probe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// StandardError is the residual standard error of m over d:
// sqrt(Σ(yᵢ - ŷᵢ)² / (n-2)).
func StandardError(d Dataset, m Model) (float64, error) {
	if len(d) < MinSamples {
		return 0, fmt.Errorf("%w: standard error needs at least %d samples, got %d", ErrDegenerateInput, MinSamples, len(d))
	}
	res := Residuals(d, m)
	return math.Sqrt(floats.Dot(res, res) / float64(len(d)-2)), nil
}

// CriticalT returns the two-tailed Student-t critical value for the given
// confidence level and degrees of freedom, i.e. the quantile at
// 1 - (1-level)/2.
func CriticalT(level float64, df int) (float64, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	if df < 1 {
		return 0, fmt.Errorf("%w: degrees of freedom must be positive, got %d", ErrDegenerateInput, df)
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return t.Quantile(1 - (1-level)/2), nil
}

// Leverage is (x - mean(x))² / Σ(xᵢ - mean(x))², the term that widens the
// interval as x moves away from the historical mean size.
func Leverage(d Dataset, x float64) (float64, error) {
	if len(d) == 0 {
		return 0, fmt.Errorf("%w: empty dataset", ErrDegenerateInput)
	}
	xs := d.Sizes()
	mean := stat.Mean(xs, nil)
	var sxx float64
	for _, v := range xs {
		sxx += (v - mean) * (v - mean)
	}
	if sxx == 0 {
		return 0, fmt.Errorf("%w: sum of squared size deviations is zero", ErrDegenerateInput)
	}
	return (x - mean) * (x - mean) / sxx, nil
}

// HalfWidth returns t*·σ·sqrt(1 + 1/n + E) for a prediction at size x.
func HalfWidth(d Dataset, m Model, x, level float64) (float64, error) {
	p, err := intervalParts(d, m, x, level)
	if err != nil {
		return 0, err
	}
	_, h, err := p.predict(m, x, len(d))
	return h, err
}

// ConfidenceInterval returns the two-sided prediction interval around
// m.Predict(x). Under the usual assumptions (independent, normal,
// homoscedastic residuals) the true effort at x falls inside it with
// probability level.
//
// It returns ErrInvalidParameter when level is outside (0,1), when x or a
// sample is not finite, or when x lies so far out that the interval
// overflows. It returns ErrDegenerateInput when d has fewer than MinSamples
// samples or all sizes are identical.
func ConfidenceInterval(d Dataset, m Model, x, level float64) (lower, upper float64, err error) {
	p, err := intervalParts(d, m, x, level)
	if err != nil {
		return 0, 0, err
	}
	y, h, err := p.predict(m, x, len(d))
	if err != nil {
		return 0, 0, err
	}
	return y - h, y + h, nil
}

type parts struct {
	stdErr   float64
	t        float64
	leverage float64
}

func (p parts) halfWidth(n int) float64 {
	return p.t * p.stdErr * math.Sqrt(1+1/float64(n)+p.leverage)
}

// predict returns the point estimate and half-width at x, failing when
// either bound is not representable.
func (p parts) predict(m Model, x float64, n int) (y, h float64, err error) {
	y = m.Predict(x)
	h = p.halfWidth(n)
	if !isFinite(h) || !isFinite(y-h) || !isFinite(y+h) {
		return 0, 0, fmt.Errorf("%w: interval at size %v overflows", ErrInvalidParameter, x)
	}
	return y, h, nil
}

func intervalParts(d Dataset, m Model, x, level float64) (parts, error) {
	if err := checkLevel(level); err != nil {
		return parts{}, err
	}
	if !isFinite(x) {
		return parts{}, fmt.Errorf("%w: query size %v is not finite", ErrInvalidParameter, x)
	}
	if len(d) < MinSamples {
		return parts{}, fmt.Errorf("%w: interval needs at least %d samples, got %d", ErrDegenerateInput, MinSamples, len(d))
	}
	if err := checkFinite(d); err != nil {
		return parts{}, err
	}
	e, err := Leverage(d, x)
	if err != nil {
		return parts{}, err
	}
	if !isFinite(e) {
		return parts{}, fmt.Errorf("%w: leverage at size %v overflows", ErrInvalidParameter, x)
	}
	se, err := StandardError(d, m)
	if err != nil {
		return parts{}, err
	}
	t, err := CriticalT(level, len(d)-2)
	if err != nil {
		return parts{}, err
	}
	return parts{stdErr: se, t: t, leverage: e}, nil
}

func checkLevel(level float64) error {
	if math.IsNaN(level) || level <= 0 || level >= 1 {
		return fmt.Errorf("%w: confidence level %v must be in (0,1)", ErrInvalidParameter, level)
	}
	return nil
}
