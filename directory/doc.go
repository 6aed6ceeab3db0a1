// Package directory resolves logical feed names and per-principal channels
// to concrete bus topics.
//
// Two implementations are provided: NATSDirectory delegates resolution to an
// external directory service over request/reply, and StaticDirectory derives
// topics by naming convention for single-instance deployments and tests.
// Absence of a topic is a normal outcome, not an error.
package directory
