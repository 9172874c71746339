package storage

import "errors"

// ErrNoState is returned by LoadSnapshot when no durable state exists
// yet for the operator. Callers start from a zero ledger.
var ErrNoState = errors.New("no saved state for operator")
