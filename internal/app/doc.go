// Package app wires configuration, logging, metrics and the transport for the
// binaries.
//
// Config is built from defaults, an optional YAML file and the environment,
// and the CLI overrides it with flags. NewWire turns a Config into a ready
// session manager; NewRelay does the same for the reference server.
package app
