package commands

import (
	"fmt"
	"strings"

	"samor/internal/domain"
)

// formatRecord renders one log entry as a single line.
func formatRecord(r domain.Record) string {
	return fmt.Sprintf("#%d %s", r.Seq, describe(r.Message))
}

func describe(m domain.AppMessage) string {
	switch v := m.(type) {
	case domain.Response:
		return "response: " + v.Text()
	case domain.Success:
		if v.Message == "" {
			return "success"
		}
		return "success: " + v.Message
	case domain.Error:
		return "error: " + v.Message
	case domain.AuthSuccess:
		return fmt.Sprintf("signed in as @%s (id %d)", v.User.Username, v.User.ID)
	case domain.AuthCodeVerified:
		return "code verified for " + v.Email
	case domain.DialogsList:
		parts := make([]string, 0, len(v.Dialogs))
		for _, d := range v.Dialogs {
			parts = append(parts, fmt.Sprintf("@%s(%d unread)", d.Peer.Username, d.UnreadCount))
		}
		return fmt.Sprintf("%d dialogs: %s", len(v.Dialogs), strings.Join(parts, ", "))
	case domain.MessagesHistory:
		return fmt.Sprintf("%d messages with peer %d", len(v.Messages), v.PeerID)
	case domain.MessageNew:
		return fmt.Sprintf("new message from %d in chat %d: %s", v.Message.SenderID, v.PeerID, v.Message.Content)
	case domain.MessagesRead:
		return fmt.Sprintf("peer %d read your messages", v.PeerID)
	case domain.MessagesReadDone:
		return fmt.Sprintf("marked chat %d as read", v.PeerID)
	case domain.UserStatus:
		return fmt.Sprintf("user %d is %s", v.UserID, v.Status)
	case domain.UserInfo:
		return "user info: @" + v.User.Username
	case domain.UserProfileUpdated:
		return "profile updated: @" + v.User.Username
	case domain.SearchResult:
		return fmt.Sprintf("found @%s (id %d)", v.User.Username, v.User.ID)
	case domain.CallSignal:
		return fmt.Sprintf("%s from %d", v.Kind, v.SenderID)
	case domain.Unknown:
		return fmt.Sprintf("unknown message type %q", v.Type)
	default:
		return fmt.Sprintf("%T", m)
	}
}
