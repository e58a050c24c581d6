// Package publish holds the consumers refresh snapshots are handed to.
package publish

import (
	"context"
	"sync"

	"pairwatch/internal/service"
)

// Latest keeps the most recent snapshot in memory for readers on other goroutines.
type Latest struct {
	mu   sync.RWMutex
	snap service.Snapshot
	ok   bool
}

// NewLatest returns an empty holder.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish replaces the held snapshot.
func (l *Latest) Publish(_ context.Context, snap service.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = snap
	l.ok = true
	return nil
}

// Get returns the last published snapshot; ok is false before the first cycle.
func (l *Latest) Get() (service.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, l.ok
}

var _ service.Publisher = (*Latest)(nil)
