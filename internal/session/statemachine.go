package session

// Status is the lifecycle state of a tutoring session.
type Status string

const (
	StatusActive         Status = "active"
	StatusResolved       Status = "resolved"
	StatusNeedsMoreHelp  Status = "needs_more_help"
	StatusReferToTeacher Status = "refer_to_teacher"
	StatusAbandoned      Status = "abandoned"
)

// Message roles.
const (
	RoleInitiator = "initiator"
	RoleResponder = "responder"
)

// transitions is the single source of truth for legal status changes.
// Terminal states are absorbing: they have no outgoing edges.
var transitions = map[Status][]Status{
	StatusActive: {
		StatusResolved,
		StatusNeedsMoreHelp,
		StatusReferToTeacher,
		StatusAbandoned,
	},
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	switch s {
	case StatusActive, StatusResolved, StatusNeedsMoreHelp, StatusReferToTeacher, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further transitions or appends.
func Terminal(s Status) bool {
	return Valid(s) && s != StatusActive
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidRole reports whether role is one of the two conversation roles.
func ValidRole(role string) bool {
	return role == RoleInitiator || role == RoleResponder
}
