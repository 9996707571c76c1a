package ledger

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/store"
)

var scoresBucket = []byte("scores")

// BoltLedger stores one JSON-encoded Scores value per unit key.
type BoltLedger struct {
	db   *bolt.DB
	path string
	warn func(string, ...any)
}

// OpenBolt opens (or creates) the bolt ledger at path.
func OpenBolt(path string, warn func(string, ...any)) (*BoltLedger, error) {
	db, err := store.OpenBoltDB(path, warn)
	if err != nil {
		return nil, err
	}
	return &BoltLedger{db: db, path: path, warn: warn}, nil
}

func (l *BoltLedger) decode(unitID string, raw []byte) Scores {
	var s Scores
	if err := json.Unmarshal(raw, &s); err != nil {
		if l.warn != nil {
			l.warn("scores for %s are corrupt, treating as empty: %v", unitID, err)
		}
		return Scores{}
	}
	if s == nil {
		s = Scores{}
	}
	return s
}

func (l *BoltLedger) UpdateScore(unitID, metric string, value float64) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(scoresBucket)
		if err != nil {
			return err
		}
		s := Scores{}
		if raw := b.Get([]byte(unitID)); raw != nil {
			s = l.decode(unitID, raw)
		}
		s[metric] = Clamp(value)
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return b.Put([]byte(unitID), data)
	})
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write ledger", err,
			map[string]string{"path": l.path, "unit": unitID, "metric": metric})
	}
	return nil
}

func (l *BoltLedger) Scores(unitID string) Scores {
	out := Scores{}
	_ = l.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(scoresBucket); b != nil {
			if raw := b.Get([]byte(unitID)); raw != nil {
				out = l.decode(unitID, raw)
			}
		}
		return nil
	})
	return out
}

func (l *BoltLedger) All() map[string]Scores {
	out := map[string]Scores{}
	_ = l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(scoresBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = l.decode(string(k), v)
			return nil
		})
	})
	return out
}

func (l *BoltLedger) Reset() error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(scoresBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(scoresBucket)
	})
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to reset ledger", err,
			map[string]string{"path": l.path})
	}
	return nil
}

func (l *BoltLedger) Close() error { return l.db.Close() }

var (
	_ Ledger = (*JSONLedger)(nil)
	_ Ledger = (*BoltLedger)(nil)
)
