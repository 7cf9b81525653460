package alarms

import "errors"

var (
	// ErrNotFound indicates the alarm does not exist.
	ErrNotFound = errors.New("alarm not found")
	// ErrUnknownProposal indicates a proposal variant the lifecycle manager
	// does not recognize; the variant set is closed.
	ErrUnknownProposal = errors.New("unknown alarm proposal variant")
)
