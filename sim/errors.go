package sim

import "golang.org/x/xerrors"

// ErrMissingAxiRequest is returned when an axi_read/axi_write/axi_writeresp
// event has no matching active request on its interface.
var ErrMissingAxiRequest = xerrors.New("no active axi request for this beat")

// ErrInvariantViolated is returned for internal stage/cycle arithmetic
// inconsistencies that should never happen given a well-formed resolved
// trace (spec.md §7).
var ErrInvariantViolated = xerrors.New("simulator invariant violated")

// ErrDeadlock is wrapped by every entry of the *multierror.Error a
// deadlocked run returns (one entry per blocked frame), so callers can
// xerrors.Is against a stable sentinel regardless of the diagnostic text.
var ErrDeadlock = xerrors.New("simulation deadlocked")
