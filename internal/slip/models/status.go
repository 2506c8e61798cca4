package models

// Status is the lifecycle state of a deposit slip. Transitions only ever
// move along the edges in the transitions table; everything else is an
// invalid transition regardless of who asks.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusRetrieved  Status = "RETRIEVED"
	StatusVerified   Status = "VERIFIED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
	StatusExpired    Status = "EXPIRED"
)

// transitions is the full edge set of the workflow. Terminal states have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusRetrieved, StatusCancelled, StatusExpired},
	StatusRetrieved:  {StatusVerified, StatusCancelled, StatusRejected, StatusExpired},
	StatusVerified:   {StatusAuthorized, StatusCancelled, StatusRejected, StatusExpired},
	StatusAuthorized: {StatusCompleted, StatusRejected, StatusExpired},
	StatusCompleted:  nil,
	StatusRejected:   nil,
	StatusCancelled:  nil,
	StatusExpired:    nil,
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s -> target exists.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// InProgress reports whether the slip is live at the counter (claimed but
// not yet closed).
func (s Status) InProgress() bool {
	switch s {
	case StatusRetrieved, StatusVerified, StatusAuthorized:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
