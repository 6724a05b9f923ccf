package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ripcordhq/ripcord/pkg/types"
)

var (
	// Bucket names
	bucketIncidents = []byte("incidents")
	bucketLeases    = []byte("leases")
)

// ErrLeaseHeld means another invocation holds the target's lease.
var ErrLeaseHeld = errors.New("target lease is held by another invocation")

// Store persists incident history and per-target leases in BoltDB.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the controller database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "ripcord.db")

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketIncidents, bucketLeases} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendIncident adds an incident record to the history. Records are keyed
// by start time plus id, so the bucket iterates in chronological order and
// existing records are never overwritten.
func (s *Store) AppendIncident(rec *types.IncidentRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIncidents)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		key := rec.StartedAt.UTC().Format(time.RFC3339Nano) + "/" + rec.ID
		return b.Put([]byte(key), data)
	})
}

// ListIncidents returns all recorded incidents for an environment in
// chronological order.
func (s *Store) ListIncidents(env types.Environment) ([]*types.IncidentRecord, error) {
	var records []*types.IncidentRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIncidents)
		return b.ForEach(func(k, v []byte) error {
			var rec types.IncidentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Target.Environment == env {
				records = append(records, &rec)
			}
			return nil
		})
	})
	return records, err
}

// lease is the stored form of a target lease
type lease struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcquireLease takes the exclusive lease for a target key. An unexpired
// lease held by a different holder fails with ErrLeaseHeld; an expired one
// is replaced.
func (s *Store) AcquireLease(key, holder string, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)

		if data := b.Get([]byte(key)); data != nil {
			var cur lease
			if err := json.Unmarshal(data, &cur); err == nil {
				if cur.Holder != holder && time.Now().Before(cur.ExpiresAt) {
					return fmt.Errorf("%w: held by %s until %s",
						ErrLeaseHeld, cur.Holder, cur.ExpiresAt.Format(time.RFC3339))
				}
			}
		}

		data, err := json.Marshal(lease{
			Holder:    holder,
			ExpiresAt: time.Now().Add(ttl),
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// ReleaseLease gives up a held lease. Releasing someone else's lease is a
// no-op.
func (s *Store) ReleaseLease(key, holder string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)

		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var cur lease
		if err := json.Unmarshal(data, &cur); err != nil {
			return b.Delete([]byte(key))
		}
		if cur.Holder != holder {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
