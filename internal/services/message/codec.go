package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"samor/internal/domain"
)

var (
	// ErrNotObject means the payload is not a JSON object.
	ErrNotObject = errors.New("payload is not a JSON object")
	// ErrBadBody means a known message type carried fields of the wrong shape.
	ErrBadBody = errors.New("message body does not match its type")
	// ErrNoMethod means a request has no method.
	ErrNoMethod = errors.New("request has no method")
)

type header struct {
	Type string `json:"type"`
}

// Decode parses a decrypted server payload into its AppMessage variant. An
// unrecognised type yields domain.Unknown, not an error.
func Decode(raw []byte) (domain.AppMessage, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	switch h.Type {
	case domain.TypeAuthSuccess:
		return decodeAs[domain.AuthSuccess](raw, h.Type)
	case domain.TypeAuthCodeVerified:
		return decodeAs[domain.AuthCodeVerified](raw, h.Type)
	case domain.TypeSuccess:
		return decodeAs[domain.Success](raw, h.Type)
	case domain.TypeError:
		return decodeAs[domain.Error](raw, h.Type)
	case domain.TypeResponse:
		return decodeAs[domain.Response](raw, h.Type)
	case domain.TypeDialogsList:
		return decodeAs[domain.DialogsList](raw, h.Type)
	case domain.TypeMessagesHistory:
		return decodeAs[domain.MessagesHistory](raw, h.Type)
	case domain.TypeMessageNew:
		return decodeAs[domain.MessageNew](raw, h.Type)
	case domain.TypeMessagesRead:
		return decodeAs[domain.MessagesRead](raw, h.Type)
	case domain.TypeMessagesReadDone:
		return decodeAs[domain.MessagesReadDone](raw, h.Type)
	case domain.TypeUserStatus:
		return decodeAs[domain.UserStatus](raw, h.Type)
	case domain.TypeUserInfo:
		return decodeAs[domain.UserInfo](raw, h.Type)
	case domain.TypeUserProfileUpdated:
		return decodeAs[domain.UserProfileUpdated](raw, h.Type)
	case domain.TypeSearchResult:
		return decodeAs[domain.SearchResult](raw, h.Type)
	case domain.TypeCallOffer, domain.TypeCallAnswer, domain.TypeCallICECandidate,
		domain.TypeCallHangup, domain.TypeCallReject:
		var c domain.CallSignal
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadBody, h.Type, err)
		}
		c.Kind = h.Type
		return c, nil
	default:
		return domain.Unknown{Type: h.Type}, nil
	}
}

func decodeAs[T domain.AppMessage](raw []byte, typ string) (domain.AppMessage, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadBody, typ, err)
	}
	return v, nil
}

// NewRequest builds a request for method. args may be nil.
func NewRequest(method string, args any) (domain.Request, error) {
	if method == "" {
		return domain.Request{}, ErrNoMethod
	}
	req := domain.Request{Method: method}
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return domain.Request{}, fmt.Errorf("marshal %s args: %w", method, err)
		}
		req.Args = b
	}
	return req, nil
}

// ParseRequest reads a decrypted client payload.
func ParseRequest(raw []byte) (domain.Request, error) {
	var req domain.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.Request{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if req.Method == "" {
		return domain.Request{}, ErrNoMethod
	}
	return req, nil
}

// Args unmarshals req.Args into v. Missing args leave v untouched.
func Args(req domain.Request, v any) error {
	if len(req.Args) == 0 || string(req.Args) == "null" {
		return nil
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("%w: %s args: %v", ErrBadBody, req.Method, err)
	}
	return nil
}
