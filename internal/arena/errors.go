package arena

import "errors"

// Conflict outcomes, surfaced to the caller and safe to retry after the
// conflicting state changes.
var (
	ErrAlreadyQueued    = errors.New("player already has an active queue entry for this mode")
	ErrNotQueued        = errors.New("player has no active queue entry for this mode")
	ErrUnknownMatch     = errors.New("match is not part of this bracket")
	ErrAlreadyReported  = errors.New("match result already reported")
	ErrMatchNotReady    = errors.New("match is not ready for a result")
	ErrTournamentClosed = errors.New("tournament no longer accepts results")
)

// Validation outcomes, rejected synchronously and never retried.
var (
	ErrInvalidRoster = errors.New("roster size must be between 2 and 64")
	ErrInvalidMode   = errors.New("invalid game mode")
)

// ErrInvariantViolation marks a corrupted state transition (duplicate active
// queue entry, bracket node with two winners). The offending transition must
// abort without persisting anything.
var ErrInvariantViolation = errors.New("invariant violation")
