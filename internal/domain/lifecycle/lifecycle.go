// Package lifecycle holds shared constants for component start/stop handling.
package lifecycle

import "time"

// DefaultTimeout bounds graceful startup and shutdown operations
// (server drain, database ping, connection close).
const DefaultTimeout = 30 * time.Second
