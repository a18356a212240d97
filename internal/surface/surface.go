// Package surface allocates the terminal surfaces that display each worker.
package surface

import "context"

// Surface accepts text as if typed by a user. Injection is fire-and-forget:
// nothing reports how the receiving program reacted.
type Surface interface {
	// Inject types text followed by Enter.
	Inject(text string) error
	// Submit sends a bare Enter.
	Submit() error
}

// Set is an ordered, fixed-size group of surfaces.
type Set interface {
	Len() int
	Surface(i int) Surface
	Close() error
}

// Pool creates surface sets.
type Pool interface {
	Allocate(ctx context.Context, n int) (Set, error)
}
