package app

import "errors"

// ErrPersistenceFailure marks a mutation that validated and applied but
// could not be durably written. Transports report it as a server error and
// must not broadcast the outcome.
var ErrPersistenceFailure = errors.New("snapshot persistence failed")
