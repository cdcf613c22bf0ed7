// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// History constants
const (
	// DefaultHistoryLimit is the number of own records returned without a limit parameter
	DefaultHistoryLimit = 30

	// MaxHistoryLimit caps the limit parameter of the own-history endpoint
	MaxHistoryLimit = 366
)

// Request constants
const (
	// MaxRequestBodyBytes bounds JSON request bodies; a descriptor is a few KB
	MaxRequestBodyBytes = 1 << 20

	// RequestTimeout is the per-request deadline applied by the router
	RequestTimeout = 30 * time.Second
)

// Employee constants
const (
	// EmployeeCreateRetries bounds retries when a concurrent create took the next EMP### id
	EmployeeCreateRetries = 3
)

// Punch attempt constants
const (
	// AttemptSweepInterval is how often expired two-phase attempts are dropped
	AttemptSweepInterval = 30 * time.Second
)

// Process constants
const (
	// ShutdownTimeout is how long in-flight requests get on SIGTERM
	ShutdownTimeout = 30 * time.Second

	// DefaultTokenTTL is the lifetime of development tokens issued by the CLI
	DefaultTokenTTL = 12 * time.Hour
)
