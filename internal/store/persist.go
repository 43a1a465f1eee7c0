package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Persister loads and saves one whole JSON document with all-or-nothing
// semantics. Load on a document that does not exist yet is a no-op.
type Persister interface {
	Load(v interface{}) error
	Save(v interface{}) error
}

// FilePersister keeps a document in a single JSON file. Saves go through a
// temp file followed by a rename so a crash mid-write never leaves a
// truncated document behind.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

func (f *FilePersister) Load(v interface{}) error {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "could not read %s", f.Path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "could not parse %s", f.Path)
	}
	return nil
}

func (f *FilePersister) Save(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "could not encode state")
	}

	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "could not create %s", dir)
		}
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return errors.Wrapf(err, "could not replace %s", f.Path)
	}
	return nil
}
