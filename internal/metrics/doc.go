// Package metrics holds the Prometheus collectors for handshakes, frames and
// live sessions.
//
// A nil *Collectors is valid and records nothing, so components can take one
// unconditionally.
package metrics
