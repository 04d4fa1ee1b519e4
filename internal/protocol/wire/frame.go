package wire

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeClientHello = "client_hello"
	TypeServerHello = "server_hello"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrBadHex         = errors.New("frame data is not valid hex")
	ErrWrongKind      = errors.New("unexpected frame kind")
)

// Kind classifies a decoded frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindClientHello
	KindServerHello
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindClientHello:
		return TypeClientHello
	case KindServerHello:
		return TypeServerHello
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// ClientHello is the payload of the client's handshake frame.
type ClientHello struct {
	PublicKey string `json:"public_key"`
}

// ServerHello is the payload of the server's handshake reply.
type ServerHello struct {
	PublicKey string `json:"public_key"`
	SessionID string `json:"session_id"`
}

// Frame is one JSON text message on the transport.
type Frame struct {
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    *string         `json:"data,omitempty"`
}

// Decode parses a raw message. It only fails on invalid JSON; unrecognised
// shapes come back with Kind() == KindUnknown.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

// Kind reports which of the known frame shapes f has. Hello types win over a
// stray data field.
func (f Frame) Kind() Kind {
	switch {
	case f.Type == TypeClientHello:
		return KindClientHello
	case f.Type == TypeServerHello:
		return KindServerHello
	case f.Data != nil:
		return KindData
	default:
		return KindUnknown
	}
}

// ClientHello returns the client_hello payload.
func (f Frame) ClientHello() (ClientHello, error) {
	var p ClientHello
	if err := f.payload(KindClientHello, &p); err != nil {
		return ClientHello{}, err
	}
	return p, nil
}

// ServerHello returns the server_hello payload.
func (f Frame) ServerHello() (ServerHello, error) {
	var p ServerHello
	if err := f.payload(KindServerHello, &p); err != nil {
		return ServerHello{}, err
	}
	return p, nil
}

// Envelope hex-decodes the data field.
func (f Frame) Envelope() ([]byte, error) {
	if f.Kind() != KindData {
		return nil, fmt.Errorf("%w: want data, got %s", ErrWrongKind, f.Kind())
	}
	b, err := hex.DecodeString(*f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	return b, nil
}

func (f Frame) payload(want Kind, v any) error {
	if k := f.Kind(); k != want {
		return fmt.Errorf("%w: want %s, got %s", ErrWrongKind, want, k)
	}
	if len(f.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformedFrame, want)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, want, err)
	}
	return nil
}

// EncodeClientHello builds a client_hello frame carrying pub.
func EncodeClientHello(pub string) []byte {
	return encodeHello(TypeClientHello, ClientHello{PublicKey: pub})
}

// EncodeServerHello builds a server_hello frame.
func EncodeServerHello(pub, sessionID string) []byte {
	return encodeHello(TypeServerHello, ServerHello{PublicKey: pub, SessionID: sessionID})
}

// EncodeData builds a data frame with the envelope in lower-case hex.
func EncodeData(envelope []byte) []byte {
	s := hex.EncodeToString(envelope)
	return mustMarshal(Frame{Data: &s})
}

func encodeHello(typ string, payload any) []byte {
	return mustMarshal(Frame{Type: typ, Payload: mustMarshal(payload)})
}

// Frames only hold strings, so Marshal cannot fail.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
