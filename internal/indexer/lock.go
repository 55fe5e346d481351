package indexer

import "sync/atomic"

// IndexLock is a non-blocking lock shared by full and incremental runs
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire reports whether the caller now holds the lock
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release must only be called by the holder
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run is in progress
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
