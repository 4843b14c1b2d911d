// Package report turns an estimation into the values, sentences and plot
// series a frontend or terminal shows. It never computes statistics itself.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"probe-go/internal/probe"
)

// DefaultHoursPerMonth is the effective working hours in a person-month.
const DefaultHoursPerMonth = 140

// Summary is the reportable view of one estimation.
type Summary struct {
	Model             probe.Model      `json:"model"`
	RSquared          float64          `json:"r_squared"`
	Prediction        probe.Prediction `json:"prediction"`
	StandardError     float64          `json:"standard_error"`
	CriticalT         float64          `json:"critical_t"`
	Leverage          float64          `json:"leverage"`
	SampleSize        int              `json:"sample_size"`
	HoursPerMonth     float64          `json:"hours_per_month"`
	PersonMonths      float64          `json:"person_months"`
	RelativeHalfWidth float64          `json:"relative_half_width_pct"`
	MinSize           float64          `json:"min_size"`
	MaxSize           float64          `json:"max_size"`
	Extrapolated      bool             `json:"extrapolated"`
}

// NewSummary derives the reported values from est. hoursPerMonth <= 0
// selects DefaultHoursPerMonth.
func NewSummary(d probe.Dataset, est probe.Estimation, hoursPerMonth float64) Summary {
	if hoursPerMonth <= 0 {
		hoursPerMonth = DefaultHoursPerMonth
	}
	p := est.Prediction
	s := Summary{
		Model:         est.Model,
		RSquared:      est.Model.RSquared(),
		Prediction:    p,
		StandardError: est.StandardError,
		CriticalT:     est.CriticalT,
		Leverage:      est.Leverage,
		SampleSize:    est.SampleSize,
		HoursPerMonth: hoursPerMonth,
		PersonMonths:  p.Effort / hoursPerMonth,
	}
	// Half-width as a share of the estimate; undefined at zero effort.
	if p.Effort != 0 {
		s.RelativeHalfWidth = p.HalfWidth / math.Abs(p.Effort) * 100
	}
	if len(d) > 0 {
		xs := d.Sizes()
		s.MinSize, s.MaxSize = floats.Min(xs), floats.Max(xs)
		s.Extrapolated = p.Size < s.MinSize || p.Size > s.MaxSize
	}
	return s
}

// Narrative renders the summary as plain sentences.
func Narrative(s Summary) []string {
	p := s.Prediction
	lines := []string{
		fmt.Sprintf("The regression over %d historical projects has r = %.5f (r² = %.5f), intercept b0 = %.2f and slope b1 = %.4f hours per LOC.",
			s.SampleSize, s.Model.Correlation, s.RSquared, s.Model.Intercept, s.Model.Slope),
		fmt.Sprintf("For an estimated size of %s LOC the estimated effort is %.2f hours, or %.2f person-months at %s hours per month.",
			formatNumber(p.Size), p.Effort, s.PersonMonths, formatNumber(s.HoursPerMonth)),
		fmt.Sprintf("With %s%% confidence the effort lies between %.2f and %.2f hours (±%.2f).",
			formatNumber(p.Confidence*100), p.Lower, p.Upper, p.HalfWidth),
	}
	if p.Effort != 0 {
		lines = append(lines, fmt.Sprintf("The interval spans ±%.1f%% of the estimate.", s.RelativeHalfWidth))
	}
	if s.Extrapolated {
		lines = append(lines, fmt.Sprintf("The size lies outside the historical range [%s, %s] LOC, so the estimate is an extrapolation.",
			formatNumber(s.MinSize), formatNumber(s.MaxSize)))
	}
	return lines
}

// Write prints the narrative, one sentence per line.
func Write(w io.Writer, s Summary) error {
	for _, line := range Narrative(s) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Point is one (size, effort) coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlotData carries everything needed to draw the scatter, the best-fit line
// and the prediction with its error bar.
type PlotData struct {
	Observed   []Point   `json:"observed"`
	Fitted     []Point   `json:"fitted"`
	Residuals  []float64 `json:"residuals"`
	Prediction *Point    `json:"prediction,omitempty"`
	ErrorBar   float64   `json:"error_bar,omitempty"`
}

// Plot builds the series for d and m. Fitted points are sorted by size so
// they can be joined into a line. p may be nil when only the fit is shown.
func Plot(d probe.Dataset, m probe.Model, p *probe.Prediction) PlotData {
	pd := PlotData{
		Observed:  make([]Point, len(d)),
		Fitted:    make([]Point, len(d)),
		Residuals: probe.Residuals(d, m),
	}
	fitted := probe.FittedValues(d, m)
	for i, s := range d {
		pd.Observed[i] = Point{X: s.Size, Y: s.Effort}
		pd.Fitted[i] = Point{X: s.Size, Y: fitted[i]}
	}
	sort.SliceStable(pd.Fitted, func(i, j int) bool { return pd.Fitted[i].X < pd.Fitted[j].X })

	if p != nil {
		pd.Prediction = &Point{X: p.Size, Y: p.Effort}
		pd.ErrorBar = p.HalfWidth
	}
	return pd
}

// formatNumber prints v without trailing zeros, rounded to six decimals.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
