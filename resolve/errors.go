package resolve

import "golang.org/x/xerrors"

// ErrProtocolViolation is returned when the token stream does not match
// the static CDFG model: an event token of the wrong kind, a trace_bb for
// the wrong function, a call instruction with no statically-known callee,
// and so on.
var ErrProtocolViolation = xerrors.New("trace protocol violation")

// ErrIncompleteTrace is returned when the token stream ends with one or
// more frames still open (spec.md §4.1 edge cases).
var ErrIncompleteTrace = xerrors.New("trace ended with frames still open")

// ErrKernelDidNotRun is returned for an empty token stream.
var ErrKernelDidNotRun = xerrors.New("kernel did not run: empty trace")
