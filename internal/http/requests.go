package httpapi

import (
	"fmt"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// Typed request bodies, validated before any domain call. Validate
// returns the full list of field problems rather than stopping at the
// first one.

type locationBody struct {
	Coordinates []float64 `json:"coordinates"` // [lng, lat]
	Address     string    `json:"address"`
}

func (l locationBody) validate(field string, problems []string) []string {
	if len(l.Coordinates) != 2 {
		return append(problems, fmt.Sprintf("%s.coordinates must be [lng, lat]", field))
	}
	if lng := l.Coordinates[0]; lng < -180 || lng > 180 {
		problems = append(problems, fmt.Sprintf("%s longitude out of range", field))
	}
	if lat := l.Coordinates[1]; lat < -90 || lat > 90 {
		problems = append(problems, fmt.Sprintf("%s latitude out of range", field))
	}
	return problems
}

func (l locationBody) toModel() models.Location {
	return models.Location{Lng: l.Coordinates[0], Lat: l.Coordinates[1], Address: l.Address}
}

type rideRequestBody struct {
	PickupLocation    locationBody `json:"pickupLocation"`
	DropoffLocation   locationBody `json:"dropoffLocation"`
	Distance          float64      `json:"distance"`
	EstimatedDuration float64      `json:"estimatedDuration"`
	PaymentMethod     string       `json:"paymentMethod"`
	SurgeMultiplier   float64      `json:"surgeMultiplier,omitempty"`
}

func (b rideRequestBody) Validate() []string {
	var problems []string
	problems = b.PickupLocation.validate("pickupLocation", problems)
	problems = b.DropoffLocation.validate("dropoffLocation", problems)
	if b.Distance <= 0 {
		problems = append(problems, "distance must be > 0")
	}
	if b.EstimatedDuration < 0 {
		problems = append(problems, "estimatedDuration must be >= 0")
	}
	switch models.PaymentMethod(b.PaymentMethod) {
	case models.PaymentCash, models.PaymentCard:
	default:
		problems = append(problems, "paymentMethod must be cash or card")
	}
	if b.SurgeMultiplier < 0 {
		problems = append(problems, "surgeMultiplier must be >= 0")
	}
	return problems
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (b cancelBody) Validate() []string {
	if len(b.Reason) > 500 {
		return []string{"reason too long"}
	}
	return nil
}

type driverStatusBody struct {
	IsOnline    *bool `json:"isOnline"`
	IsAvailable *bool `json:"isAvailable"`
}

func (b driverStatusBody) Validate() []string {
	if b.IsOnline == nil && b.IsAvailable == nil {
		return []string{"at least one of isOnline, isAvailable is required"}
	}
	return nil
}

type rateBody struct {
	Rating float64 `json:"rating"`
	Review string  `json:"review"`
}

func (b rateBody) Validate() []string {
	var problems []string
	if b.Rating < 1 || b.Rating > 5 {
		problems = append(problems, "rating must be between 1 and 5")
	}
	if len(b.Review) > 1000 {
		problems = append(problems, "review too long")
	}
	return problems
}
