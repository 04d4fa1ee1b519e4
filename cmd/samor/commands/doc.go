// Package commands defines the samor CLI and wires dependencies for subcommands.
//
// Commands
//
//   - connect   Open a session and exchange requests interactively
//   - send      Open a session, send one request and print the replies
//
// # Implementation
//
// The root command loads the configuration (defaults, YAML file, environment,
// then flags), builds the logger and the session manager before any
// subcommand runs. Subcommands share that wiring through the package-level
// app context.
//
// Requests are written as a method followed by key=value arguments. Values
// that parse as JSON keep their JSON type; everything else is a string:
//
//	samor send echo text=hello
//	samor send messages.get_history peer_id=7
package commands
