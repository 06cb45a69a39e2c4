// Package store persists enrollments and agreements in bbolt so the
// engine can be audited and restarted without losing settlement
// history. The in-memory state remains authoritative during operation;
// the store is written through on commit.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/rightsorg/librights-go/agreement"
	"github.com/rightsorg/librights-go/enroll"
)

var (
	bucketEnrollments = []byte("enrollments")
	bucketAgreements  = []byte("agreements")
)

// Store wraps a bbolt database holding enrollment and agreement records.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEnrollments, bucketAgreements} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// idKey encodes a distributor id as an 8-byte big-endian key.
func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// PutEnrollment stores or overwrites an enrollment record.
func (s *Store) PutEnrollment(e enroll.Enrollment) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeGob(e)
		if err != nil {
			return fmt.Errorf("store: encode enrollment: %w", err)
		}
		if err := tx.Bucket(bucketEnrollments).Put(idKey(e.DistributorID), data); err != nil {
			return fmt.Errorf("store: put enrollment: %w", err)
		}
		return nil
	})
}

// GetEnrollment retrieves the enrollment record for a distributor.
func (s *Store) GetEnrollment(distributorID uint64) (enroll.Enrollment, error) {
	var e enroll.Enrollment
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEnrollments).Get(idKey(distributorID))
		if data == nil {
			return fmt.Errorf("%w: distributor %d", ErrNotFound, distributorID)
		}
		if err := decodeGob(data, &e); err != nil {
			return fmt.Errorf("store: decode enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return enroll.Enrollment{}, err
	}
	return e, nil
}

// DeleteEnrollment removes a distributor's enrollment record.
func (s *Store) DeleteEnrollment(distributorID uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEnrollments)
		if b.Get(idKey(distributorID)) == nil {
			return fmt.Errorf("%w: distributor %d", ErrNotFound, distributorID)
		}
		if err := b.Delete(idKey(distributorID)); err != nil {
			return fmt.Errorf("store: delete enrollment: %w", err)
		}
		return nil
	})
}

// PutAgreement stores or overwrites an agreement keyed by its proof.
func (s *Store) PutAgreement(a agreement.Agreement) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeGob(a)
		if err != nil {
			return fmt.Errorf("store: encode agreement: %w", err)
		}
		if err := tx.Bucket(bucketAgreements).Put(a.Proof[:], data); err != nil {
			return fmt.Errorf("store: put agreement: %w", err)
		}
		return nil
	})
}

// GetAgreement retrieves an agreement by proof.
func (s *Store) GetAgreement(proof agreement.Proof) (agreement.Agreement, error) {
	var a agreement.Agreement
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAgreements).Get(proof[:])
		if data == nil {
			return fmt.Errorf("%w: agreement %x", ErrNotFound, proof[:8])
		}
		if err := decodeGob(data, &a); err != nil {
			return fmt.Errorf("store: decode agreement: %w", err)
		}
		return nil
	})
	if err != nil {
		return agreement.Agreement{}, err
	}
	return a, nil
}

// ListAgreements returns all stored agreements in key order.
func (s *Store) ListAgreements() ([]agreement.Agreement, error) {
	var out []agreement.Agreement
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAgreements).ForEach(func(k, v []byte) error {
			var a agreement.Agreement
			if err := decodeGob(v, &a); err != nil {
				return fmt.Errorf("store: decode agreement in list: %w", err)
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list agreements: %w", err)
	}
	return out, nil
}
