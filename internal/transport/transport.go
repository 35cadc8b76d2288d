// SPDX-License-Identifier: MIT

// Package transport forwards published chord results to remote displays.
package transport

// Transport defines a generic interface for sending analysis results.
// Implementations must be safe for concurrent use and must not block the
// caller for long; slow consumers drop messages instead.
type Transport interface {
	Send(data any) error
	Close() error
}
