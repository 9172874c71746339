// Package storage provides the durable snapshot/restore of ledger and
// scheduler timing state, one record per operator identity.
package storage

import "github.com/eddiefleurent/schrute_bucks/internal/ledger"

// Interface is the contract for durable state persistence.
//
// Implementations must be safe for concurrent use: the scheduler writes
// after every mutation while the status endpoint may read concurrently.
type Interface interface {
	// SaveSnapshot durably writes the full ledger snapshot.
	SaveSnapshot(snap ledger.Snapshot) error
	// LoadSnapshot reads the last written snapshot, or ErrNoState when
	// the operator has none yet.
	LoadSnapshot() (ledger.Snapshot, error)
}

// NewStore creates the default JSON-file implementation, keyed by
// operator name inside dir.
func NewStore(dir, operator string) (Interface, error) {
	return NewJSONStore(dir, operator)
}

// Ensure JSONStore implements Interface.
var _ Interface = (*JSONStore)(nil)
