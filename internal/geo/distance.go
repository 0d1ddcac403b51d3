// Package geo prices delivery distance. Distances are great-circle
// approximations; they are good enough for radius-based delivery fees and
// avoid a round trip to an external maps API.
package geo

import (
	"math"

	"github.com/shopspring/decimal"
)

// earthRadiusKM is the mean Earth radius used by the haversine formula.
const earthRadiusKM = 6371.0

// Distance returns the great-circle distance in kilometers between two
// coordinates, rounded to 2 decimal places. It never fails for finite inputs.
func Distance(lat1, lng1, lat2, lng2 float64) decimal.Decimal {
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dlng/2)*math.Sin(dlng/2)
	// Rounding can push a fractionally outside [0, 1] for near-antipodal
	// points, which would make the Sqrt below NaN.
	a = math.Min(math.Max(a, 0), 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return decimal.NewFromFloat(earthRadiusKM * c).Round(2)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// SurchargePolicy derives a delivery surcharge from the computed distance.
// Within the free radius delivery costs nothing; beyond it the charge grows
// per kilometer with a floor so short overshoots still cover courier cost.
type SurchargePolicy struct {
	FreeRadiusKM decimal.Decimal
	PerKMCharge  decimal.Decimal
	MinSurcharge decimal.Decimal
}

// Surcharge returns the distance surcharge for the given distance, rounded to
// 2 decimal places. The express fee is not part of the distance surcharge and
// is added separately by the order ledger.
func (p SurchargePolicy) Surcharge(distanceKM decimal.Decimal) decimal.Decimal {
	if distanceKM.LessThanOrEqual(p.FreeRadiusKM) {
		return decimal.Zero
	}
	extra := distanceKM.Sub(p.FreeRadiusKM)
	charge := extra.Mul(p.PerKMCharge).Round(2)
	if charge.LessThan(p.MinSurcharge) {
		charge = p.MinSurcharge
	}
	return charge.Round(2)
}
