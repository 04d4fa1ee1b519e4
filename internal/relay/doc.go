// Package relay carries the encrypted session protocol over websockets.
//
// It provides both halves:
//
//   - Dialer and Conn adapt github.com/gorilla/websocket to domain.Dialer and
//     domain.Conn for the client session manager.
//   - Server is an http.Handler that runs the server side of the handshake for
//     every upgraded connection, keeps a registry of established sessions and
//     dispatches decrypted requests to a domain.RequestHandler.
//
// # Server behaviour
//
//   - Each connection gets a random UUID session id.
//   - The first frame must be a client_hello with a valid public value;
//     anything else closes the socket with status 4000.
//   - Frames that fail to decode or decrypt are dropped and logged, and the
//     session continues.
//   - A handler error is logged and answered with {"type":"error"}.
//
// EchoHandler implements the small method set used for development and
// tests: echo, ping and broadcast.
package relay
