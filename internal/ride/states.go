package ride

import "github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"

// Action is a requested lifecycle move.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionArrive   Action = "arrive"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type rule struct {
	from  []models.RideStatus
	to    models.RideStatus
	roles []models.Role
}

// transitions is the authoritative lifecycle definition:
// requested -> accepted -> arrived -> started -> completed, with cancel
// reachable from every non-terminal status.
var transitions = map[Action]rule{
	ActionAccept: {
		from:  []models.RideStatus{models.StatusRequested},
		to:    models.StatusAccepted,
		roles: []models.Role{models.RoleDriver},
	},
	ActionArrive: {
		from:  []models.RideStatus{models.StatusAccepted},
		to:    models.StatusArrived,
		roles: []models.Role{models.RoleDriver},
	},
	ActionStart: {
		from:  []models.RideStatus{models.StatusArrived},
		to:    models.StatusStarted,
		roles: []models.Role{models.RoleDriver},
	},
	ActionComplete: {
		from:  []models.RideStatus{models.StatusStarted},
		to:    models.StatusCompleted,
		roles: []models.Role{models.RoleDriver},
	},
	ActionCancel: {
		from:  []models.RideStatus{models.StatusRequested, models.StatusAccepted, models.StatusArrived, models.StatusStarted},
		to:    models.StatusCancelled,
		roles: []models.Role{models.RoleDriver, models.RolePassenger},
	},
}

// Next resolves the transition table for (current, action, role). It
// returns the new status, or a TransitionError when the current status
// does not admit the action. Role mismatches also surface as
// TransitionError so callers cannot distinguish "wrong actor kind"
// from "wrong phase" and probe the lifecycle.
func Next(current models.RideStatus, action Action, role models.Role) (models.RideStatus, error) {
	r, ok := transitions[action]
	if !ok {
		return "", &TransitionError{From: current, Action: action}
	}
	if !contains(r.from, current) {
		return "", &TransitionError{From: current, Action: action}
	}
	if !containsRole(r.roles, role) {
		return "", &TransitionError{From: current, Action: action}
	}
	return r.to, nil
}

func contains(ss []models.RideStatus, s models.RideStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsRole(rs []models.Role, r models.Role) bool {
	for _, v := range rs {
		if v == r {
			return true
		}
	}
	return false
}
