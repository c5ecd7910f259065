package call

import "errors"

// Error taxonomy returned by the lifecycle operations. The command layer and
// the ops API map these to user-facing text and HTTP statuses; none of them
// is ever fatal to the process.
var (
	ErrNotFound           = errors.New("call not found")
	ErrForbidden          = errors.New("actor is not allowed to act on this call")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyInCall      = errors.New("participant already has an active call")
	ErrSelfCallNotAllowed = errors.New("caller and receiver are the same participant")
	ErrDirectoryLookup    = errors.New("directory lookup failed")

	// ErrPersistenceUnavailable marks store failures surfaced by read
	// paths. Write paths never return it; they log and degrade to
	// memory-only behavior instead.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
