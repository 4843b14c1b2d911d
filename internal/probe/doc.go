// Package probe implements PROBE (Proxy-Based Estimation): it fits an
// ordinary least-squares line to historical (size, effort) pairs, predicts
// effort for a new size and reports a two-sided prediction interval based
// on the Student-t distribution.
//
// The pipeline is linear:
//
//	ds, _ := probe.NewDataset(sizes, efforts)
//	model, err := probe.Fit(ds)
//	if err != nil {
//		// errors.Is(err, probe.ErrDegenerateInput)
//	}
//	y := model.Predict(289700)
//	lower, upper, err := probe.ConfidenceInterval(ds, model, 289700, 0.95)
//
// Estimate runs all three steps and returns every intermediate value a
// report needs.
//
// All functions are pure. They hold no package state and are safe to call
// concurrently on independent datasets.
//
// Prediction outside the historical size range is allowed; the interval
// widens with the distance from the mean size, but the linear model itself
// is only as good as the history behind it.
package probe
