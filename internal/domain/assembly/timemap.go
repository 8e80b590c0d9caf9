package assembly

import "math"

// TimeMapper maps a snapshot label to a physical time coordinate. Any
// monotonic transform is acceptable; the engine sorts snapshots by mapped
// time, so the label convention (redshift descending, plain time ascending)
// is entirely the mapper's business.
type TimeMapper func(label float64) float64

// DefaultAgeGyr is the T0 of the default redshift mapping, in Gyr.
const DefaultAgeGyr = 13.8

// RedshiftAge maps redshift z to lookback time for a matter-dominated
// universe of age t0: t(z) = t0 * (1 - (1+z)^-1.5). The mapping is
// monotonic in z, which is all the engine requires; interval lengths come
// out the same whichever direction the series is traversed.
func RedshiftAge(t0 float64) TimeMapper {
	return func(z float64) float64 {
		return t0 * (1 - math.Pow(1+z, -1.5))
	}
}

// IdentityTime treats labels as a time coordinate directly.
func IdentityTime() TimeMapper {
	return func(label float64) float64 { return label }
}
