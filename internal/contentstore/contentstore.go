// Package contentstore provides content-addressed storage for post and
// comment provenance. Failures are non-fatal: callers attach the returned
// reference opportunistically and proceed without one on error.
package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ErrUnavailable indicates the backing store rejected the call.
var ErrUnavailable = errors.New("content store unavailable")

// Content is the envelope pinned for a post or comment.
type Content struct {
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Signature string    `json:"signature,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store pins content under a derived reference and retrieves it later.
type Store interface {
	Store(ctx context.Context, c Content) (string, error)
	Retrieve(ctx context.Context, ref string) (Content, error)
}

// Memory is an in-process Store keyed by the sha256 of the body. It can be
// forced offline for degradation tests.
type Memory struct {
	mu      sync.RWMutex
	pins    map[string]Content
	offline bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{pins: make(map[string]Content)}
}

// SetOffline toggles failure injection.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Ref derives the content reference for a body.
func Ref(body string) string {
	sum := sha256.Sum256([]byte(body))
	return "cid-" + hex.EncodeToString(sum[:])
}

func (m *Memory) Store(_ context.Context, c Content) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return "", ErrUnavailable
	}
	ref := Ref(c.Body)
	m.pins[ref] = c
	return ref, nil
}

func (m *Memory) Retrieve(_ context.Context, ref string) (Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.offline {
		return Content{}, ErrUnavailable
	}
	c, ok := m.pins[ref]
	if !ok {
		return Content{}, errors.New("content not pinned")
	}
	return c, nil
}
