package generation

import "errors"

// Sentinel kinds for generation errors.
var (
	// ErrBadResponse marks unparseable or schema-violating model output.
	// Recoverable at stages that define a deterministic fallback.
	ErrBadResponse = errors.New("malformed generation response")

	// ErrTransport marks network or timeout failures talking to the
	// generation backend. Fatal for core stages.
	ErrTransport = errors.New("generation transport failed")
)
