package document

import (
	"fmt"
	"slices"
)

// Status is the local lifecycle state of a document. The lifecycle is a
// closed state machine: any transition not present in the table below is
// rejected with InvalidStateError.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusCreated         Status = "created"
	StatusParticipantsSet Status = "participants_set"
	StatusSent            Status = "sent"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusDeclined        Status = "declined"
	StatusCanceled        Status = "canceled"
	StatusExpired         Status = "expired"
)

var validTransitions = map[Status][]Status{
	StatusDraft:           {StatusCreated},
	StatusCreated:         {StatusParticipantsSet},
	StatusParticipantsSet: {StatusSent},
	StatusSent:            {StatusInProgress, StatusCompleted, StatusDeclined, StatusCanceled, StatusExpired},
	StatusInProgress:      {StatusCompleted, StatusDeclined, StatusCanceled, StatusExpired},
	StatusCompleted:       {}, // terminal
	StatusDeclined:        {}, // terminal
	StatusCanceled:        {}, // terminal
	StatusExpired:         {}, // terminal
}

// Terminal reports whether s is a final state. Terminal documents accept no
// further mutation; re-delivery of the same terminal status is a no-op.
func (s Status) Terminal() bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

// CanTransition checks the lifecycle table for a from→to edge.
func CanTransition(from, to Status) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// InvalidStateError reports an operation attempted against a document that is
// not in the required lifecycle state. This is a caller-ordering bug, not a
// retryable condition.
type InvalidStateError struct {
	Op   string
	From Status
	To   Status
}

func (e *InvalidStateError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("document: invalid transition %s → %s during %s", e.From, e.To, e.Op)
	}
	return fmt.Sprintf("document: operation %s not allowed in state %s", e.Op, e.From)
}
