package probe

import (
	"fmt"
	"math"
)

// Sample is one historical project: its size in lines of code and the
// effort in hours it actually took.
type Sample struct {
	Size   float64 `json:"size"`
	Effort float64 `json:"effort"`
}

// Dataset is an ordered sequence of historical samples.
type Dataset []Sample

// NewDataset pairs sizes[i] with efforts[i].
// It returns ErrInvalidParameter if the slices differ in length or hold a
// value that is not a finite number.
func NewDataset(sizes, efforts []float64) (Dataset, error) {
	if len(sizes) != len(efforts) {
		return nil, fmt.Errorf("%w: %d sizes but %d efforts", ErrInvalidParameter, len(sizes), len(efforts))
	}
	ds := make(Dataset, len(sizes))
	for i := range sizes {
		if !isFinite(sizes[i]) || !isFinite(efforts[i]) {
			return nil, fmt.Errorf("%w: sample %d is not finite (%v, %v)", ErrInvalidParameter, i, sizes[i], efforts[i])
		}
		ds[i] = Sample{Size: sizes[i], Effort: efforts[i]}
	}
	return ds, nil
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d) }

// Sizes returns the x column as a new slice.
func (d Dataset) Sizes() []float64 {
	xs := make([]float64, len(d))
	for i, s := range d {
		xs[i] = s.Size
	}
	return xs
}

// Efforts returns the y column as a new slice.
func (d Dataset) Efforts() []float64 {
	ys := make([]float64, len(d))
	for i, s := range d {
		ys[i] = s.Effort
	}
	return ys
}

// checkFinite reports the first sample holding NaN or ±Inf. Datasets built
// as literals skip NewDataset, so Fit and ConfidenceInterval call it too.
func checkFinite(d Dataset) error {
	for i, s := range d {
		if !isFinite(s.Size) || !isFinite(s.Effort) {
			return fmt.Errorf("%w: sample %d (%v, %v) is not finite", ErrInvalidParameter, i, s.Size, s.Effort)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
