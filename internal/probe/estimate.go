package probe

// Prediction is the point estimate at a query size together with its
// interval.
type Prediction struct {
	Size       float64 `json:"size"`
	Effort     float64 `json:"effort"`
	HalfWidth  float64 `json:"half_width"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

// Estimation is the full result of fitting d and predicting at one size.
type Estimation struct {
	Model            Model      `json:"model"`
	Prediction       Prediction `json:"prediction"`
	StandardError    float64    `json:"standard_error"`
	CriticalT        float64    `json:"critical_t"`
	Leverage         float64    `json:"leverage"`
	DegreesOfFreedom int        `json:"degrees_of_freedom"`
	SampleSize       int        `json:"sample_size"`
}

// Estimate fits d, predicts effort at size x and computes the interval at
// the given confidence level. Errors are those of Fit and
// ConfidenceInterval; no partial result is returned.
func Estimate(d Dataset, x, level float64) (Estimation, error) {
	m, err := Fit(d)
	if err != nil {
		return Estimation{}, err
	}
	p, err := intervalParts(d, m, x, level)
	if err != nil {
		return Estimation{}, err
	}
	y, h, err := p.predict(m, x, len(d))
	if err != nil {
		return Estimation{}, err
	}
	return Estimation{
		Model: m,
		Prediction: Prediction{
			Size:       x,
			Effort:     y,
			HalfWidth:  h,
			Lower:      y - h,
			Upper:      y + h,
			Confidence: level,
		},
		StandardError:    p.stdErr,
		CriticalT:        p.t,
		Leverage:         p.leverage,
		DegreesOfFreedom: len(d) - 2,
		SampleSize:       len(d),
	}, nil
}
