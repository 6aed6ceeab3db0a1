// Package errors provides standardized error handling patterns for bonfire-notify.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the streaming gateway: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification lets connection handling make informed decisions without
// hardcoded error string matching: an invalid token rejects the connection
// attempt outright, a transient bus failure terminates only the affected
// dispatch, and a fatal configuration error stops the component.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, connection issues, bus unavailability
//   - Invalid: malformed input, rejected credentials, bad configuration values
//   - Fatal: resource exhaustion, missing required configuration
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: <underlying error>"
//
// via Wrap, WrapTransient, WrapInvalid, and WrapFatal:
//
//	if err := bus.Subscribe(ctx, topic, handler); err != nil {
//	    return errors.WrapTransient(err, "Connection", "subscribe", "register bus topic")
//	}
package errors
