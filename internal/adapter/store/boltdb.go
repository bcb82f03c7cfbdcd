package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"clipfind/internal/domain"
)

var bucketRecords = []byte("records")

// BoltRecordStore persists embedding records in one bbolt file per model
// under a cache directory. bbolt transactions give the atomic-replace
// discipline: a crash mid-commit leaves the previous consistent state
// visible, and readers never see a partial write.
type BoltRecordStore struct {
	dir string

	mu  sync.Mutex
	dbs map[domain.Model]*bbolt.DB
}

func NewBoltRecordStore(dir string) (*BoltRecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &BoltRecordStore{
		dir: dir,
		dbs: make(map[domain.Model]*bbolt.DB),
	}, nil
}

// Dir returns the cache directory holding the per-model store files.
func (s *BoltRecordStore) Dir() string { return s.dir }

func (s *BoltRecordStore) dbPath(model domain.Model) string {
	return filepath.Join(s.dir, string(model)+".db")
}

func (s *BoltRecordStore) open(model domain.Model) (*bbolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[model]; ok {
		return db, nil
	}

	db, err := bbolt.Open(s.dbPath(model), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", domain.ErrCorruptStore, s.dbPath(model), err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create records bucket: %v", domain.ErrCorruptStore, err)
	}

	s.dbs[model] = db
	return db, nil
}

type storedRecord struct {
	Fingerprint string    `json:"fp"`
	Vector      []float32 `json:"v"`
	CreatedAt   int64     `json:"at"`
}

// Load reads all records for a model. Values that fail to unmarshal or
// carry the wrong dimension are skipped, not fatal; only an unopenable
// store surfaces domain.ErrCorruptStore.
func (s *BoltRecordStore) Load(model domain.Model) ([]domain.EmbeddingRecord, error) {
	db, err := s.open(model)
	if err != nil {
		return nil, err
	}

	var records []domain.EmbeddingRecord
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("%w: records bucket missing", domain.ErrCorruptStore)
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip unreadable entries
			}
			if len(stored.Vector) != model.Dimension() {
				return nil
			}
			records = append(records, domain.EmbeddingRecord{
				Path:        string(k),
				Fingerprint: stored.Fingerprint,
				Vector:      stored.Vector,
				CreatedAt:   time.Unix(0, stored.CreatedAt),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Put merges records with replace-by-path semantics in a single write
// transaction.
func (s *BoltRecordStore) Put(model domain.Model, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	db, err := s.open(model)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, rec := range records {
			if len(rec.Vector) != model.Dimension() {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
					rec.Path, model.Dimension(), len(rec.Vector))
			}
			stored := storedRecord{
				Fingerprint: rec.Fingerprint,
				Vector:      rec.Vector,
				CreatedAt:   rec.CreatedAt.UnixNano(),
			}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.Path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes records by path. Missing paths are not an error.
func (s *BoltRecordStore) Delete(model domain.Model, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	db, err := s.open(model)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, p := range paths {
			if err := b.Delete([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Discard drops a model's store file. A file that could not be opened is
// moved aside rather than deleted so it can be inspected.
func (s *BoltRecordStore) Discard(model domain.Model) error {
	s.mu.Lock()
	if db, ok := s.dbs[model]; ok {
		db.Close()
		delete(s.dbs, model)
	}
	s.mu.Unlock()

	path := s.dbPath(model)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return os.Rename(path, path+".corrupt")
	}
	db.Close()
	return os.Remove(path)
}

func (s *BoltRecordStore) Count(model domain.Model) (int, error) {
	db, err := s.open(model)
	if err != nil {
		return 0, err
	}

	count := 0
	err = db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketRecords); b != nil {
			count = b.Stats().KeyN
		}
		return nil
	})
	return count, err
}

func (s *BoltRecordStore) Size(model domain.Model) (int64, error) {
	info, err := os.Stat(s.dbPath(model))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *BoltRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for model, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, model)
	}
	return firstErr
}
