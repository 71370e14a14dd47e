package ride

import (
	"errors"
	"testing"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    models.RideStatus
		action  Action
		role    models.Role
		want    models.RideStatus
		wantErr bool
	}{
		{"accept from requested", models.StatusRequested, ActionAccept, models.RoleDriver, models.StatusAccepted, false},
		{"arrive from accepted", models.StatusAccepted, ActionArrive, models.RoleDriver, models.StatusArrived, false},
		{"start from arrived", models.StatusArrived, ActionStart, models.RoleDriver, models.StatusStarted, false},
		{"complete from started", models.StatusStarted, ActionComplete, models.RoleDriver, models.StatusCompleted, false},
		{"cancel from requested", models.StatusRequested, ActionCancel, models.RolePassenger, models.StatusCancelled, false},
		{"cancel from started by driver", models.StatusStarted, ActionCancel, models.RoleDriver, models.StatusCancelled, false},

		{"start before arrive", models.StatusAccepted, ActionStart, models.RoleDriver, "", true},
		{"arrive from requested", models.StatusRequested, ActionArrive, models.RoleDriver, "", true},
		{"complete from arrived", models.StatusArrived, ActionComplete, models.RoleDriver, "", true},
		{"accept an accepted ride", models.StatusAccepted, ActionAccept, models.RoleDriver, "", true},
		{"cancel completed", models.StatusCompleted, ActionCancel, models.RolePassenger, "", true},
		{"cancel cancelled", models.StatusCancelled, ActionCancel, models.RoleDriver, "", true},
		{"passenger cannot arrive", models.StatusAccepted, ActionArrive, models.RolePassenger, "", true},
		{"passenger cannot complete", models.StatusStarted, ActionComplete, models.RolePassenger, "", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Next(c.from, c.action, c.role)
			if c.wantErr {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected TransitionError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %s want %s", got, c.want)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []models.RideStatus{models.StatusCompleted, models.StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		for _, a := range []Action{ActionAccept, ActionArrive, ActionStart, ActionComplete, ActionCancel} {
			if _, err := Next(s, a, models.RoleDriver); err == nil {
				t.Errorf("%s permitted from terminal %s", a, s)
			}
		}
	}
}
