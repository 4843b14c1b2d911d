package probe

import "errors"

var (
	// ErrDegenerateInput indicates a dataset that cannot support a fit or an
	// interval: too few samples or sizes that are all identical.
	ErrDegenerateInput = errors.New("probe: degenerate input")
	// ErrInvalidParameter indicates a confidence level outside (0,1) or a
	// query size that is not a finite number.
	ErrInvalidParameter = errors.New("probe: invalid parameter")
)
