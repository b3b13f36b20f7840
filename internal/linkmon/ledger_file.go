package linkmon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LedgerStore persists the outage ledger. Load on a store that has never
// been written returns an empty ledger and no error.
type LedgerStore interface {
	Load(ctx context.Context) (Ledger, error)
	Save(ctx context.Context, l Ledger) error
}

// Compile-time interface guard.
var _ LedgerStore = (*FileLedgerStore)(nil)

// FileLedgerStore keeps the ledger in a JSON file.
type FileLedgerStore struct {
	path string
}

// NewFileLedgerStore creates a store backed by the file at path.
func NewFileLedgerStore(path string) *FileLedgerStore {
	return &FileLedgerStore{path: path}
}

// Path returns the ledger file location.
func (s *FileLedgerStore) Path() string {
	return s.path
}

// Load reads the ledger file. A missing file yields an empty ledger. An
// unreadable or malformed file also yields an empty ledger, together with
// the error so the caller can log it.
func (s *FileLedgerStore) Load(_ context.Context) (Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewLedger(), nil
	}
	if err != nil {
		return NewLedger(), fmt.Errorf("read ledger %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewLedger(), nil
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return NewLedger(), fmt.Errorf("decode ledger %s: %w", s.path, err)
	}
	if l == nil {
		// The file held JSON null.
		return NewLedger(), nil
	}
	for unit, bucket := range l {
		if len(bucket) == 0 {
			delete(l, unit)
		}
	}
	return l, nil
}

// Save writes the ledger to a temp file in the same directory and renames
// it over the target, so readers never see a half-written file.
func (s *FileLedgerStore) Save(_ context.Context, l Ledger) error {
	if l == nil {
		l = NewLedger()
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", s.path, err)
	}
	return nil
}
