// Package delivery defines the surface every transport front-end implements.
package delivery

import "context"

// Delivery is a long-running server started by the application entrypoint.
// Serve blocks until the delivery stops or the context is cancelled.
type Delivery interface {
	Serve(ctx context.Context) error
}
