package domain

import (
	"context"
	"encoding/json"
)

// Conn is a message-oriented duplex connection. ReadMessage may be called from
// one goroutine while WriteMessage is called from another; concurrent writers
// must be serialized by the implementation.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
}

// Dialer opens a Conn to a URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Transport is the client-side session contract used by the CLI.
type Transport interface {
	Connect(ctx context.Context) error
	Send(v any) error
	Status() Status
	Close() error
}

// Request is the decrypted {"method", "args"} shape a client sends.
type Request struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// RequestHandler answers one decrypted request for a session. A nil reply
// sends nothing back.
type RequestHandler interface {
	Handle(ctx context.Context, sessionID string, req Request) (reply any, err error)
}

// Broadcaster pushes a message to every connected session.
type Broadcaster interface {
	Broadcast(v any) int
}

// TranscriptStore persists a message log.
type TranscriptStore interface {
	SaveTranscript(records []Record) error
	LoadTranscript() ([]Record, error)
}
