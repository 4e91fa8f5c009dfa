package sleepstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// retainedMagic guards against reading a foreign or stale file layout.
const retainedMagic = "slp1"

type retainedBlock struct {
	Magic string    `msgpack:"magic"`
	Enter Timestamp `msgpack:"enter"`
}

// RetainedStore keeps the timestamp in a msgpack-encoded file. Point it at a
// RAM-backed mount (/run) to get retention-memory semantics: it survives
// sleep and re-exec but not power loss.
type RetainedStore struct {
	Path string
}

// NewRetainedStore returns a store backed by path.
func NewRetainedStore(path string) *RetainedStore {
	return &RetainedStore{Path: path}
}

// Load reads the retained block.
func (s *RetainedStore) Load() (Timestamp, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Timestamp{}, ErrNotFound
	}
	if err != nil {
		return Timestamp{}, fmt.Errorf("read retained block: %w", err)
	}

	var blk retainedBlock
	if err := msgpack.Unmarshal(data, &blk); err != nil {
		return Timestamp{}, fmt.Errorf("decode retained block: %w", err)
	}
	if blk.Magic != retainedMagic {
		return Timestamp{}, ErrNotFound
	}
	return blk.Enter, nil
}

// Save writes the retained block via a temp file and rename so a reader
// never sees a torn write.
func (s *RetainedStore) Save(ts Timestamp) error {
	data, err := msgpack.Marshal(retainedBlock{Magic: retainedMagic, Enter: ts})
	if err != nil {
		return fmt.Errorf("encode retained block: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create retained dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write retained block: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("commit retained block: %w", err)
	}
	return nil
}
