package session

import (
	"sync"

	"metaview/internal/core/appctx"
)

// Memory is an in-memory SessionSource and schema store for tests and
// ephemeral (no state file) runs.
type Memory struct {
	mu     sync.RWMutex
	sess   *appctx.Session
	etags  map[string]string
	bodies map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		etags:  make(map[string]string),
		bodies: make(map[string][]byte),
	}
}

// Save stores the session record.
func (m *Memory) Save(sess *appctx.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

// Current returns the stored session, applying the same JWT expiry check as
// the persistent store.
func (m *Memory) Current() (*appctx.Session, bool) {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess == nil {
		return nil, false
	}
	if TokenExpired(sess.Token) {
		_ = m.Clear()
		return nil, false
	}
	return sess, true
}

// Clear removes the stored session.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// ETag returns the stored ETag for a key.
func (m *Memory) ETag(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.etags[key]
}

// CachedSchema returns the stored ETag and payload for a key.
func (m *Memory) CachedSchema(key string) (string, []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.etags[key], m.bodies[key]
}

// SetCachedSchema stores the ETag and payload for a key.
func (m *Memory) SetCachedSchema(key, etag string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags[key] = etag
	m.bodies[key] = body
	return nil
}
