package port_platform

import "context"

// Locker serializes work on a key across every process consuming the queues.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
