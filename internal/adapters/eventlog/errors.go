package eventlog

import "errors"

// Sentinel kinds for event log errors.
var (
	ErrAppend = errors.New("event append failed")
	ErrQuery  = errors.New("event query failed")
	ErrReset  = errors.New("event log reset failed")
)
