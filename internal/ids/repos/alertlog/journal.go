// Package alertlog persists emitted alerts to a bbolt database. Alerts are
// stored as JSON under a monotonically increasing big-endian sequence key,
// so a cursor walk yields them in emission order.
package alertlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

var bucketAlerts = []byte("alerts")

// Journal is an append-only alert store. It is safe for concurrent use.
type Journal struct {
	db *bbolt.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("alertlog: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAlerts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("alertlog: init %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// Append stores alert and returns its sequence number.
func (j *Journal) Append(ctx context.Context, alert domain.Alert) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := json.Marshal(alert)
	if err != nil {
		return 0, fmt.Errorf("alertlog: encode: %w", err)
	}
	var seq uint64
	err = j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), v)
	})
	if err != nil {
		return 0, fmt.Errorf("alertlog: append: %w", err)
	}
	return seq, nil
}

// List returns up to limit alerts, oldest first. A limit of 0 or less returns all.
func (j *Journal) List(limit int) ([]domain.Alert, error) {
	var out []domain.Alert
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAlerts).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var a domain.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode alert %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("alertlog: list: %w", err)
	}
	return out, nil
}

// Count returns the number of stored alerts.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketAlerts).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
