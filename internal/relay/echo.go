package relay

import (
	"context"

	"samor/internal/domain"
	"samor/internal/services/message"
)

// Methods understood by EchoHandler.
const (
	MethodEcho      = "echo"
	MethodPing      = "ping"
	MethodBroadcast = "broadcast"
)

type reply struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func responseReply(data any) reply { return reply{Type: domain.TypeResponse, Data: data} }
func errorReply(msg string) reply  { return reply{Type: domain.TypeError, Message: msg} }

type textArgs struct {
	Text string `json:"text"`
}

// EchoHandler answers echo, ping and broadcast. Broadcaster must be set before
// a broadcast request arrives.
type EchoHandler struct {
	Broadcaster domain.Broadcaster
}

func (h *EchoHandler) Handle(ctx context.Context, sessionID string, req domain.Request) (any, error) {
	switch req.Method {
	case MethodEcho:
		var args textArgs
		if err := message.Args(req, &args); err != nil {
			return errorReply("Invalid arguments"), nil
		}
		return responseReply("Echo: " + args.Text), nil

	case MethodPing:
		return responseReply("pong"), nil

	case MethodBroadcast:
		var args textArgs
		if err := message.Args(req, &args); err != nil {
			return errorReply("Invalid arguments"), nil
		}
		if h.Broadcaster == nil {
			return errorReply("Broadcast unavailable"), nil
		}
		h.Broadcaster.Broadcast(responseReply(args.Text))
		return reply{Type: domain.TypeSuccess}, nil

	default:
		return errorReply("Unknown method"), nil
	}
}

var _ domain.RequestHandler = (*EchoHandler)(nil)
