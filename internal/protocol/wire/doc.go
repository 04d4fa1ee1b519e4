// Package wire encodes and classifies the JSON frames exchanged over the
// websocket transport.
//
// Three frame shapes exist:
//
//	{"type":"client_hello","payload":{"public_key":"<decimal>"}}
//	{"type":"server_hello","payload":{"public_key":"<decimal>","session_id":"<id>"}}
//	{"data":"<hex envelope>"}
//
// Anything else decodes as KindUnknown and is left to the caller to drop.
package wire
