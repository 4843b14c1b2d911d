package probe

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one column of a dataset.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"p25"`
	Median float64 `json:"p50"`
	Q3     float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Description holds the sample statistics a regression is built from.
type Description struct {
	Size           Summary `json:"size"`
	Effort         Summary `json:"effort"`
	SizeVariance   float64 `json:"size_variance"`
	EffortVariance float64 `json:"effort_variance"`
	Covariance     float64 `json:"covariance"`
}

// Describe computes count, mean, sample standard deviation, quartiles and
// extremes for both columns, plus the sample variances and the covariance.
// Variances use the n-1 denominator. It needs at least two samples.
func Describe(d Dataset) (Description, error) {
	if len(d) < 2 {
		return Description{}, fmt.Errorf("%w: describe needs at least 2 samples, got %d", ErrDegenerateInput, len(d))
	}
	xs, ys := d.Sizes(), d.Efforts()
	return Description{
		Size:           summarize(xs),
		Effort:         summarize(ys),
		SizeVariance:   stat.Variance(xs, nil),
		EffortVariance: stat.Variance(ys, nil),
		Covariance:     stat.Covariance(xs, ys, nil),
	}, nil
}

func summarize(vals []float64) Summary {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return Summary{
		Count:  len(vals),
		Mean:   stat.Mean(vals, nil),
		StdDev: stat.StdDev(vals, nil),
		Min:    floats.Min(sorted),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
}
