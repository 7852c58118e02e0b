// Package session persists the client state that survives restarts: the
// single opaque session record and the conditionally fetched schemas with
// their ETags. Storage is a local bbolt database.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"metaview/internal/core/appctx"
	"metaview/pkg/logger"
)

var (
	bucketSession = []byte("session")
	bucketETags   = []byte("etags")
	bucketSchemas = []byte("schemas")

	keySession = []byte("current")
)

// Store is the bbolt-backed client state store.
type Store struct {
	db *bolt.DB

	mu     sync.RWMutex
	cached *appctx.Session // nil until loaded
	loaded bool
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSession, bucketETags, bucketSchemas} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init state db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the session record.
func (s *Store) Save(sess *appctx.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keySession, payload)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = sess
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Current returns the persisted session. A session whose token is a JWT with
// a visibly-past expiry is dropped here instead of burning a guaranteed-401
// round trip; opaque tokens are returned as-is.
func (s *Store) Current() (*appctx.Session, bool) {
	s.mu.RLock()
	if s.loaded {
		sess := s.cached
		s.mu.RUnlock()
		if sess == nil {
			return nil, false
		}
		if TokenExpired(sess.Token) {
			s.dropExpired()
			return nil, false
		}
		return sess, true
	}
	s.mu.RUnlock()

	var sess *appctx.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSession).Get(keySession)
		if raw == nil {
			return nil
		}
		var decoded appctx.Session
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		sess = &decoded
		return nil
	})
	if err != nil {
		logger.Warn(context.Background(), "failed to load session", "error", err)
		return nil, false
	}

	s.mu.Lock()
	s.cached = sess
	s.loaded = true
	s.mu.Unlock()

	if sess == nil {
		return nil, false
	}
	if TokenExpired(sess.Token) {
		s.dropExpired()
		return nil, false
	}
	return sess, true
}

func (s *Store) dropExpired() {
	logger.Info(context.Background(), "stored token expired, clearing session")
	if err := s.Clear(); err != nil {
		logger.Error(context.Background(), "failed to clear expired session", "error", err)
	}
}

// Clear removes the persisted session. Cached schemas and their ETags
// survive: they key payloads, not identity.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keySession)
	})
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()
	return err
}

// ETag returns the stored ETag for a schema key, empty when absent.
func (s *Store) ETag(key string) string {
	etag, _ := s.CachedSchema(key)
	return etag
}

// CachedSchema returns the persisted ETag and payload for a schema key.
// A fresh process serves conditional fetches from these, so a 304 never
// leaves the caller without the schema the ETag refers to.
func (s *Store) CachedSchema(key string) (string, []byte) {
	var (
		etag string
		body []byte
	)
	_ = s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketETags).Get([]byte(key)); raw != nil {
			etag = string(raw)
		}
		if raw := tx.Bucket(bucketSchemas).Get([]byte(key)); raw != nil {
			body = append([]byte(nil), raw...)
		}
		return nil
	})
	return etag, body
}

// SetCachedSchema persists the ETag and payload of a schema key in one
// transaction.
func (s *Store) SetCachedSchema(key, etag string, body []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketETags).Put([]byte(key), []byte(etag)); err != nil {
			return err
		}
		return tx.Bucket(bucketSchemas).Put([]byte(key), body)
	})
}
