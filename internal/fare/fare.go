package fare

import (
	"math"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// Pricing constants. The quoted fare is the contract with the
// passenger: it is computed once at request time and never recomputed.
const (
	baseFare        = 2.0
	perKmRate       = 1.5
	perMinRate      = 0.3
	minimumFare     = 5.0
	minSurge        = 1.0
	maxSurge        = 5.0
	defaultSpeedKmh = 30.0
)

// Calculate produces a deterministic fare breakdown. Negative distance
// or duration is treated as zero; surge is clamped to [1.0, 5.0]. The
// minimum fare floor applies after surge, and rounding to cents happens
// on the outputs, not on intermediate sums.
func Calculate(distanceKm, durationMin, surge float64) models.FareBreakdown {
	if distanceKm < 0 {
		distanceKm = 0
	}
	if durationMin < 0 {
		durationMin = 0
	}
	surge = clamp(surge, minSurge, maxSurge)

	distanceFare := distanceKm * perKmRate
	timeFare := durationMin * perMinRate
	total := (baseFare + distanceFare + timeFare) * surge
	if total < minimumFare {
		total = minimumFare
	}

	return models.FareBreakdown{
		BaseFare:        baseFare,
		DistanceFare:    roundCents(distanceFare),
		TimeFare:        roundCents(timeFare),
		SurgeMultiplier: surge,
		TotalFare:       roundCents(total),
	}
}

// SurgeInputs feed the multiplier: demand is recent ride requests,
// supply is currently available drivers.
type SurgeInputs struct {
	Demand    int
	Supply    int
	TimeOfDay string
}

var timeOfDayMultiplier = map[string]float64{
	"rush-hour": 1.3,
	"evening":   1.2,
	"night":     1.1,
	"normal":    1.0,
	"afternoon": 1.0,
}

// SurgeMultiplier derives a surge factor from demand/supply pressure
// and time of day, clamped to 5.0 and rounded to one decimal. Unknown
// time-of-day keys fall back to 1.0.
func SurgeMultiplier(in SurgeInputs) float64 {
	supply := in.Supply
	if supply < 1 {
		supply = 1
	}
	ratio := float64(in.Demand) / float64(supply)

	base := 1.0
	switch {
	case ratio > 3:
		base = 2.0
	case ratio > 2:
		base = 1.5
	case ratio > 1.5:
		base = 1.2
	}

	tod, ok := timeOfDayMultiplier[in.TimeOfDay]
	if !ok {
		tod = 1.0
	}

	result := base * tod
	if result > maxSurge {
		result = maxSurge
	}
	return math.Round(result*10) / 10
}

// EstimateDurationMin is a naive duration fallback for requests that
// omit an estimate. In prod the client quotes from a routing engine.
func EstimateDurationMin(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = defaultSpeedKmh
	}
	return distanceKm / speedKmh * 60
}

// TimeOfDay buckets an hour of day into the surge table's keys.
func TimeOfDay(hour int) string {
	switch {
	case (hour >= 7 && hour < 10) || (hour >= 16 && hour < 19):
		return "rush-hour"
	case hour >= 19 && hour < 23:
		return "evening"
	case hour >= 23 || hour < 5:
		return "night"
	default:
		return "normal"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundCents rounds half-up to two decimals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
