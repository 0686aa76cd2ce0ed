package engine

import (
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// Status is the terminal state of one resolution.
type Status int

const (
	// StatusNoResult means the engine abstained: no strategy applied or the
	// request was already authenticated. The host may try other mechanisms.
	StatusNoResult Status = iota

	// StatusSuccess means an identity was resolved.
	StatusSuccess

	// StatusFail means the selected strategy could not decode its signal.
	// The request stays unauthenticated.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	default:
		return "no_result"
	}
}

// Outcome is the result of Engine.Authenticate.
type Outcome struct {
	Status Status

	// ID correlates the outcome with its observability events.
	ID string

	// Identity is set on success.
	Identity *identity.Identity

	// Provider is the provider name of the selected strategy.
	Provider string

	// Reason and Err are set on failure.
	Reason strategy.FailureReason
	Err    error
}

// Succeeded reports whether an identity was resolved.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess && o.Identity != nil
}
