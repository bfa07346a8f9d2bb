package histo

import "fmt"

// RatioPoint is one point of a ratio pad: a value with a symmetric y error
// and the bin half-width for the horizontal error bar.
type RatioPoint struct {
	X          float64
	Value      float64
	Err        float64
	XHalfWidth float64
}

// Ratios holds everything ComputeRatios derives from one observed/background
// pair.
type Ratios struct {
	// NormalizedObserved is the observed series divided by bin width.
	NormalizedObserved BinSeries
	// NormalizedBackgroundBand is the background total divided by bin width;
	// its uncertainties form the hatched error band on the main pad.
	NormalizedBackgroundBand BinSeries
	// Ratio is data/background with the data error propagated.
	Ratio []RatioPoint
	// RatioBand is centred on 1 with the relative background error as its
	// half-height.
	RatioBand []RatioPoint
}

// ComputeRatios derives the width-normalised distributions and the
// data/background ratio series. Both inputs must share their binning and the
// background must be strictly positive in every bin; anything else is a
// domain error and nothing is computed.
//
// The observed uncertainty is read through High, so symmetric data errors
// are used as given. The ratio error is relErrData*ratio, evaluated as
// err/background so an empty data bin yields 0 rather than NaN.
func ComputeRatios(observed, background BinSeries) (Ratios, error) {
	if err := observed.SameBinning(background, DefaultBinTolerance); err != nil {
		return Ratios{}, err
	}
	for i, b := range background.bins {
		if !(b.Content > 0) {
			return Ratios{}, &domainError{kind: ErrNonPositiveBackground,
				msg: fmt.Sprintf("bin %d at x=%g has background %g", i, b.Center, b.Content)}
		}
	}

	n := observed.Len()
	ratio := make([]RatioPoint, n)
	band := make([]RatioPoint, n)
	for i := 0; i < n; i++ {
		obs, bkg := observed.bins[i], background.bins[i]
		num, den := obs.Content, bkg.Content

		ratio[i] = RatioPoint{
			X:          bkg.Center,
			Value:      num / den,
			Err:        obs.Err.High() / den,
			XHalfWidth: bkg.HalfWidth,
		}
		band[i] = RatioPoint{
			X:          bkg.Center,
			Value:      1,
			Err:        bkg.Err.High() / den,
			XHalfWidth: bkg.HalfWidth,
		}
	}

	return Ratios{
		NormalizedObserved:       observed.Normalize(),
		NormalizedBackgroundBand: background.Normalize(),
		Ratio:                    ratio,
		RatioBand:                band,
	}, nil
}
