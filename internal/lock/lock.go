// Package lock provides keyed mutual exclusion used to serialize admission
// decisions for a single bookable resource.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock could not be obtained before the wait deadline.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive access to a key.
// The returned release func must be called exactly once; it is safe to call after ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
