package domain

import "math"

// minorUnitOverrides lists ISO 4217 currencies whose minor-unit precision is
// not the common 2. Unknown currencies fall back to 2.
var minorUnitOverrides = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

func MinorUnits(currency string) int {
	if n, ok := minorUnitOverrides[currency]; ok {
		return n
	}
	return 2
}

// RoundHalfUp rounds v to the given number of decimal digits with ties
// rounded up, the rounding mode commission snapshots are computed under.
// Amounts in this engine are never negative.
func RoundHalfUp(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Floor(v*scale+0.5) / scale
}

// RoundToMinorUnits rounds an amount to the currency's minor-unit precision.
func RoundToMinorUnits(v float64, currency string) float64 {
	return RoundHalfUp(v, MinorUnits(currency))
}
