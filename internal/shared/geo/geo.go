package geo

import (
	"errors"
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned when a point has a non-finite latitude or longitude.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Point struct {
	Lat float64
	Lng float64
}

func (p Point) valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lng)
}

// Step is the movement between two consecutive fixes.
type Step struct {
	DistanceKm    float64
	DurationHours float64
	SpeedKmh      float64
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Pow(math.Sin(dPhi/2), 2) + math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLambda/2), 2)
	// rounding can push a just past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

// SpeedKmh is zero for non-positive durations.
func SpeedKmh(distanceKm, hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return distanceKm / hours
}

// Leg computes distance, elapsed hours and speed from one fix to the next.
func Leg(from, to Point, elapsed time.Duration) (Step, error) {
	if !from.valid() || !to.valid() {
		return Step{}, ErrInvalidCoordinate
	}
	distance := HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	hours := elapsed.Hours()
	return Step{
		DistanceKm:    distance,
		DurationHours: hours,
		SpeedKmh:      SpeedKmh(distance, hours),
	}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
