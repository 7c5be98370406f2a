// Package delivery defines the contract every transport-facing server
// implements, so main can start them uniformly.
package delivery

import "context"

// Delivery is a server that accepts work until its context ends.
type Delivery interface {
	Serve(ctx context.Context) error
}
