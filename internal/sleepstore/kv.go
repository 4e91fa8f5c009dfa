package sleepstore

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Names used in the key/value database.
const (
	Namespace = "storage"
	KeySec    = "slp_enter_sec"
	KeyUsec   = "slp_enter_usec"
)

// KVStore keeps the timestamp as two named int32 values in a bbolt database.
// The database is opened and closed around each access so nothing stays
// open across sleep.
type KVStore struct {
	Path    string
	Timeout time.Duration
}

// NewKVStore returns a store backed by the database at path.
func NewKVStore(path string) *KVStore {
	return &KVStore{Path: path, Timeout: time.Second}
}

func (s *KVStore) open() (*bolt.DB, error) {
	db, err := bolt.Open(s.Path, 0o600, &bolt.Options{Timeout: s.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open kv store %s: %w", s.Path, err)
	}
	return db, nil
}

// Load reads both keys. A missing namespace or key yields ErrNotFound.
func (s *KVStore) Load() (Timestamp, error) {
	db, err := s.open()
	if err != nil {
		return Timestamp{}, err
	}
	defer db.Close()

	var ts Timestamp
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(Namespace))
		if b == nil {
			return ErrNotFound
		}
		sec, ok := getInt32(b, KeySec)
		if !ok {
			return ErrNotFound
		}
		usec, ok := getInt32(b, KeyUsec)
		if !ok {
			return ErrNotFound
		}
		ts = Timestamp{Sec: sec, Usec: usec}
		return nil
	})
	return ts, err
}

// Save writes both keys in one transaction, which commits on return.
func (s *KVStore) Save(ts Timestamp) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(Namespace))
		if err != nil {
			return err
		}
		if err := putInt32(b, KeySec, ts.Sec); err != nil {
			return err
		}
		return putInt32(b, KeyUsec, ts.Usec)
	})
	if err != nil {
		return fmt.Errorf("commit kv store: %w", err)
	}
	log.Printf("sleepstore: committed %s=%d %s=%d", KeySec, ts.Sec, KeyUsec, ts.Usec)
	return nil
}

func getInt32(b *bolt.Bucket, key string) (int32, bool) {
	v := b.Get([]byte(key))
	if len(v) != 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(v)), true
}

func putInt32(b *bolt.Bucket, key string, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return b.Put([]byte(key), buf[:])
}
