package ride

import (
	"errors"
	"fmt"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// Conflict errors are expected, retryable outcomes: the losing caller
// re-polls, the record is guaranteed untouched by the failed attempt.
var (
	ErrRideNotAvailable  = errors.New("ride is no longer available")
	ErrDriverOffline     = errors.New("driver must be online to accept rides")
	ErrDriverUnavailable = errors.New("driver is not available")
	ErrNotParticipant    = errors.New("caller is not a participant of this ride")
	ErrAlreadyRated      = errors.New("ride already rated by this side")
)

// TransitionError reports an attempted lifecycle move whose
// precondition no longer holds against the latest persisted state.
type TransitionError struct {
	From   models.RideStatus
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a ride in status %q", e.Action, e.From)
}

// IsConflict reports whether err is a retryable conflict rather than a
// caller mistake or an infrastructure failure.
func IsConflict(err error) bool {
	var te *TransitionError
	return errors.Is(err, ErrRideNotAvailable) || errors.As(err, &te)
}
