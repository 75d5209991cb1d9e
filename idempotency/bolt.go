// Package idempotency remembers the responses of mutating requests by their
// Idempotency-Key, so a kiosk retrying a timed-out POST gets the first
// answer instead of recording the expense twice.
package idempotency

import (
	"encoding/json"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "responses"

var ErrNotFound = errors.New("idempotency record not found")

// Record is a stored response.
type Record struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

type Option func(*Store)

// WithTTL makes records older than ttl invisible to Get and replaceable by
// Create. Zero keeps records until purged.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the store file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) expired(rec Record) bool {
	return s.ttl > 0 && rec.CreatedAt.Before(s.now().Add(-s.ttl))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) (*Record, error) {
	var rec Record

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if s.expired(rec) {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Create stores rec unless its key is already taken. It returns the stored
// record and whether this call wrote it.
func (s *Store) Create(rec Record) (*Record, bool, error) {
	var result Record
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if existing := b.Get([]byte(rec.Key)); existing != nil {
			if err := json.Unmarshal(existing, &result); err != nil {
				return err
			}
			if !s.expired(result) {
				return nil
			}
		}

		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		result = rec
		created = true
		return b.Put([]byte(rec.Key), data)
	})
	if err != nil {
		return nil, false, err
	}

	return &result, created, nil
}

// Purge deletes records created before cutoff and returns how many went.
func (s *Store) Purge(cutoff time.Time) (int, error) {
	purged := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.CreatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(stale)
		return nil
	})
	return purged, err
}
