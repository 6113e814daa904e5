package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileLedger persists snapshots as a single JSON document. Saves write
// to a temp file in the same directory and atomically rename over the
// target, so a crashed or concurrent save never leaves a corrupt file
// for the next load.
type FileLedger struct {
	path string
}

// NewFileLedger creates a ledger backed by the given file path.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(), nil
		}
		return nil, eris.Wrapf(err, "filestore: read %s", l.path)
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, eris.Wrapf(err, "filestore: unmarshal %s", l.path)
	}
	return snap, nil
}

func (l *FileLedger) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "filestore: marshal snapshot")
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "filestore: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "filestore: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "filestore: close temp file")
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "filestore: rename to %s", l.path)
	}
	return nil
}

func (l *FileLedger) Migrate(_ context.Context) error { return nil }

func (l *FileLedger) Close() error { return nil }
