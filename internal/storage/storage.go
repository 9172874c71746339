package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
)

// JSONStore persists one JSON state file per operator identity,
// written atomically (temp file + rename) after each state-changing
// event.
type JSONStore struct {
	mu       sync.Mutex
	filepath string
	operator string
}

type stateFile struct {
	Operator    string          `json:"operator"`
	LastUpdated time.Time       `json:"last_updated"`
	Ledger      ledger.Snapshot `json:"ledger"`
}

// NewJSONStore creates a store writing state_<operator>.json inside
// dir, creating dir if needed.
func NewJSONStore(dir, operator string) (*JSONStore, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, fmt.Errorf("operator identity is required")
	}
	if strings.ContainsAny(operator, `/\`) {
		return nil, fmt.Errorf("operator identity %q must not contain path separators", operator)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &JSONStore{
		filepath: filepath.Join(dir, fmt.Sprintf("state_%s.json", operator)),
		operator: operator,
	}, nil
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.filepath }

// SaveSnapshot implements Interface.
func (s *JSONStore) SaveSnapshot(snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(stateFile{
		Operator:    s.operator,
		LastUpdated: time.Now().UTC(),
		Ledger:      snap,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	// Write to temp file first, then rename so a crash mid-write never
	// leaves a truncated state file.
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// LoadSnapshot implements Interface.
func (s *JSONStore) LoadSnapshot() (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledger.Snapshot{}, ErrNoState
		}
		return ledger.Snapshot{}, fmt.Errorf("reading state: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("decoding state: %w", err)
	}
	if state.Operator != "" && state.Operator != s.operator {
		return ledger.Snapshot{}, fmt.Errorf("state file belongs to operator %q, not %q", state.Operator, s.operator)
	}
	return state.Ledger, nil
}
