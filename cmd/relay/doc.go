// Command relay is the reference samor server. It answers the DH handshake on
// the configured websocket paths, serves echo, ping and broadcast requests
// over the encrypted channel and exposes Prometheus metrics.
package main
