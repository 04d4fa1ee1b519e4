// Package message converts between decrypted payloads and typed values.
//
// Decode turns a server message into a domain.AppMessage variant; NewRequest
// and ParseRequest build and read the {"method", "args"} client request.
package message
