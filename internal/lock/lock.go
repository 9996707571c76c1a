// Package lock provides exclusive locks scoped to a file path.
// A lock is held both across processes (flock on a sidecar .lock file) and
// across goroutines of the same process, since flock alone does not
// serialize goroutines sharing one file table entry.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"

	clipErrors "github.com/NielsdaWheelz/clipsift/internal/errors"
)

// DefaultTimeout bounds how long Exclusive waits for a contended lock.
const DefaultTimeout = 30 * time.Second

const retryDelay = 10 * time.Millisecond

var (
	mu    sync.Mutex
	local = map[string]chan struct{}{}
)

// localSlot returns the one-slot semaphore serializing goroutines on path.
func localSlot(path string) chan struct{} {
	mu.Lock()
	defer mu.Unlock()
	slot, ok := local[path]
	if !ok {
		slot = make(chan struct{}, 1)
		local[path] = slot
	}
	return slot
}

// Unlock releases a held lock. Safe to call once.
type Unlock func()

// Exclusive acquires the lock for path, waiting up to DefaultTimeout.
// The lock file is path + ".lock".
func Exclusive(path string) (Unlock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return ExclusiveContext(ctx, path)
}

// ExclusiveContext acquires the lock for path, giving up when ctx ends.
func ExclusiveContext(ctx context.Context, path string) (Unlock, error) {
	slot := localSlot(path)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, clipErrors.WrapWithDetails(clipErrors.ELockFailed, "failed to acquire lock", ctx.Err(),
			map[string]string{"path": path})
	}

	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil || !ok {
		<-slot
		if err == nil {
			err = ctx.Err()
		}
		return nil, clipErrors.WrapWithDetails(clipErrors.ELockFailed, "failed to acquire lock", err,
			map[string]string{"path": path})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fl.Unlock()
			<-slot
		})
	}, nil
}

// With runs fn while holding the exclusive lock for path.
func With(path string, fn func() error) error {
	unlock, err := Exclusive(path)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Held reports whether another process currently holds the lock for path.
// It never blocks.
func Held(path string) bool {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	_ = fl.Unlock()
	return false
}
