// Package session runs the client side of an encrypted transport session.
//
// A Manager owns one connection at a time and moves through
//
//	disconnected -> handshaking -> connected -> disconnected
//
// Connect dials, sends a client_hello with a fresh Diffie-Hellman public value
// and blocks until the server_hello arrives. After that Send encrypts
// application messages and a single reader goroutine decrypts inbound data
// frames into the ordered Log, in arrival order.
//
// # Failure policy
//
// Frames that cannot be decoded, decrypted or parsed are dropped and logged.
// They never reach the Log, never surface as an error and never trigger a
// reconnect. Send while not connected does nothing and reports
// ErrNotConnected.
//
// # Key lifetime
//
// Every Connect mints a new key pair. The private exponent is wiped as soon as
// the AuthKey is derived, and the AuthKey is wiped when the connection ends.
package session
