package limit

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNoRows     = errors.New("no limit rows")
	ErrBadBand    = errors.New("negative band width")
	ErrBadTheory  = errors.New("invalid theory prediction")
	ErrNoTheory   = errors.New("no theory curve")
	ErrNotCrossed = errors.New("limit does not cross theory")
)
