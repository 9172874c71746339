package ledger

import "errors"

// ErrPositionNotFound is returned when a close or failed-close refers
// to an id that is unknown or already closed.
var ErrPositionNotFound = errors.New("position not found or already closed")

// ErrInvalidArgument is returned when a lifecycle operation is invoked
// with non-positive amounts or prices. This indicates a caller bug, not
// a market condition.
var ErrInvalidArgument = errors.New("invalid ledger argument")
