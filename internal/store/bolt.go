package store

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

var unitsBucket = []byte("units")

// OpenTimeout bounds how long opening a bolt file waits for another
// process holding it.
const OpenTimeout = 5 * time.Second

// BoltStore keeps unit state in a bbolt database, one key per unit.
// Writes are serialized by bolt's single-writer transactions.
type BoltStore struct {
	db   *bolt.DB
	path string
	warn func(format string, args ...any)
	m    mutator
}

// OpenBolt opens (or creates) the bolt state database at path.
// A corrupt database file is moved aside and replaced by an empty one.
func OpenBolt(path string, stages []string, now func() time.Time, warn func(string, ...any)) (*BoltStore, error) {
	if now == nil {
		now = time.Now
	}
	db, err := OpenBoltDB(path, warn)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(unitsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to init state bucket", err,
			map[string]string{"path": path})
	}
	return &BoltStore{
		db:   db,
		path: path,
		warn: warn,
		m:    mutator{stages: append([]string(nil), stages...), now: now},
	}, nil
}

// OpenBoltDB opens a bolt file with the package timeout. Shared with the
// score ledger's bolt backend.
func OpenBoltDB(path string, warn func(string, ...any)) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to create dir", err,
			map[string]string{"path": path})
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: OpenTimeout})
	if err == nil {
		return db, nil
	}
	if stderrors.Is(err, bolt.ErrTimeout) {
		return nil, errors.WrapWithDetails(errors.ELockFailed, "database is held by another process", err,
			map[string]string{"path": path})
	}
	if !isCorrupt(err) {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to open database", err,
			map[string]string{"path": path})
	}

	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "database unreadable", err,
			map[string]string{"path": path})
	}
	if warn != nil {
		warn("database %s unreadable (%v), moved to %s and starting empty", path, err, aside)
	}
	db, err = bolt.Open(path, 0o600, &bolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to recreate database", err,
			map[string]string{"path": path})
	}
	return db, nil
}

// isCorrupt reports whether err from bolt.Open means the file content is bad,
// as opposed to the file being unreachable.
func isCorrupt(err error) bool {
	return stderrors.Is(err, bolt.ErrInvalid) ||
		stderrors.Is(err, bolt.ErrChecksum) ||
		stderrors.Is(err, bolt.ErrVersionMismatch) ||
		stderrors.Is(err, bolt.ErrInvalidMapping)
}

func (s *BoltStore) get(b *bolt.Bucket, id string) (UnitState, bool) {
	raw := b.Get([]byte(id))
	if raw == nil {
		return UnitState{}, false
	}
	var u UnitState
	if err := json.Unmarshal(raw, &u); err != nil {
		if s.warn != nil {
			s.warn("state for %s is corrupt, treating as new: %v", id, err)
		}
		return UnitState{}, false
	}
	return u, true
}

func (s *BoltStore) put(b *bolt.Bucket, id string, u UnitState) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), data)
}

func (s *BoltStore) update(fn func(b *bolt.Bucket) error) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(unitsBucket)
		if err != nil {
			return err
		}
		return fn(b)
	})
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write state", err,
			map[string]string{"path": s.path})
	}
	return nil
}

func (s *BoltStore) view(fn func(b *bolt.Bucket)) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(unitsBucket); b != nil {
			fn(b)
		}
		return nil
	})
}

func (s *BoltStore) Initialize(unitIDs []string) (int, error) {
	added := 0
	err := s.update(func(b *bolt.Bucket) error {
		added = 0
		for _, id := range unitIDs {
			if _, ok := s.get(b, id); ok {
				continue
			}
			if err := s.put(b, id, s.m.newUnit()); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	return added, err
}

func (s *BoltStore) MarkStageDone(unitID, stage string) error {
	return s.update(func(b *bolt.Bucket) error {
		u, ok := s.get(b, unitID)
		if !ok {
			u = s.m.newUnit()
		}
		return s.put(b, unitID, s.m.markDone(u, stage))
	})
}

func (s *BoltStore) IsStageDone(unitID, stage string) bool {
	u, ok := s.Get(unitID)
	return ok && u.StageDone(stage)
}

func (s *BoltStore) UpdateStatus(unitID string, status Status, stage, message string) error {
	return s.update(func(b *bolt.Bucket) error {
		u, ok := s.get(b, unitID)
		if !ok {
			u = s.m.newUnit()
		}
		return s.put(b, unitID, s.m.update(u, status, stage, message))
	})
}

func (s *BoltStore) Get(unitID string) (u UnitState, ok bool) {
	s.view(func(b *bolt.Bucket) { u, ok = s.get(b, unitID) })
	return u, ok
}

func (s *BoltStore) Units() []string {
	return sortedKeys(s.Snapshot())
}

func (s *BoltStore) Snapshot() map[string]UnitState {
	out := map[string]UnitState{}
	s.view(func(b *bolt.Bucket) {
		_ = b.ForEach(func(k, _ []byte) error {
			if u, ok := s.get(b, string(k)); ok {
				out[string(k)] = u
			}
			return nil
		})
	})
	return out
}

func (s *BoltStore) Reset() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(unitsBucket) != nil {
			if err := tx.DeleteBucket(unitsBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(unitsBucket)
		return err
	})
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to reset state", err,
			map[string]string{"path": s.path})
	}
	return nil
}

func (s *BoltStore) Close() error { return s.db.Close() }
