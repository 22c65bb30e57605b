package engine

import "errors"

// Verdict-carrying sentinel errors, named after the error kinds in
// spec.md §7. The engine bumps the matching counters itself before
// returning one of these; callers can tell the causes apart with
// errors.Is, never by string content.
var (
	ErrInvalidPacket = errors.New("invalid packet")
	ErrNoMemory      = errors.New("session arena exhausted")
	ErrNoPorts       = errors.New("all port pools exhausted")
	ErrLookupMiss    = errors.New("no matching inbound binding")
	ErrCollision     = errors.New("flow table insert collision")
)
