// Package domain defines the data models and contracts shared by the transport,
// the services and the CLI.
//
// Contents
//
//   - Status: the connection state observed by callers
//   - AppMessage and its variants: typed server messages
//   - Record: one entry of the ordered message log
//   - Conn, Dialer: the duplex transport the session runs over
//   - RequestHandler, Broadcaster: the server-side dispatch contract
//   - TranscriptStore: persistence of the message log
//
// It holds plain types and interfaces only.
package domain
