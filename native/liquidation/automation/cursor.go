package automation

import (
	"encoding/binary"
	"errors"

	"stablecore/storage"
)

var cursorKey = []byte("liquidation/scan-cursor")

// CursorStore persists the scan cursor across scheduler invocations. The
// cursor is the only state shared between otherwise-independent scan cycles.
type CursorStore interface {
	Load() (uint64, error)
	Store(offset uint64) error
}

type dbCursorStore struct {
	db storage.Database
}

// NewCursorStore returns a cursor store backed by the given database. A
// missing cursor reads as zero.
func NewCursorStore(db storage.Database) CursorStore {
	return &dbCursorStore{db: db}
}

func (s *dbCursorStore) Load() (uint64, error) {
	raw, err := s.db.Get(cursorKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *dbCursorStore) Store(offset uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, offset)
	return s.db.Put(cursorKey, buf)
}
