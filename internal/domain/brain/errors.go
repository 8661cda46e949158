package brain

import "errors"

// Sentinel kinds for brain errors.
var (
	// ErrInvalidAction rejects feedback actions outside {publish, reject}.
	ErrInvalidAction = errors.New(`action must be "publish" or "reject"`)
)
