package domain

import "encoding/json"

// Server message types carried in the "type" field of a decrypted payload.
const (
	TypeAuthSuccess        = "auth_success"
	TypeAuthCodeVerified   = "auth_code_verified"
	TypeSuccess            = "success"
	TypeError              = "error"
	TypeResponse           = "response"
	TypeDialogsList        = "dialogs.list"
	TypeMessagesHistory    = "messages.history"
	TypeMessageNew         = "message.new"
	TypeMessagesRead       = "messages.read"
	TypeMessagesReadDone   = "messages.read_done"
	TypeUserStatus         = "user.status"
	TypeUserInfo           = "user.info"
	TypeUserProfileUpdated = "user.profile_updated"
	TypeSearchResult       = "search_result"

	TypeCallOffer        = "call.offer"
	TypeCallAnswer       = "call.answer"
	TypeCallICECandidate = "call.ice_candidate"
	TypeCallHangup       = "call.hangup"
	TypeCallReject       = "call.reject"
)

// AppMessage is a decrypted server message. The set of implementations is
// closed; switch on the concrete type.
type AppMessage interface {
	MessageType() string
	appMessage()
}

// User is the public profile of an account as the server reports it.
type User struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	About       string  `json:"about,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Token       string  `json:"token,omitempty"`
	IsOnline    bool    `json:"is_online,omitempty"`
	LastSeen    float64 `json:"last_seen,omitempty"`
}

// ChatMessage is one stored chat message.
type ChatMessage struct {
	ID        int64   `json:"id"`
	SenderID  int64   `json:"sender_id"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	MediaURL  string  `json:"media_url,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt float64 `json:"created_at"`
}

// Dialog is one entry of the conversation list.
type Dialog struct {
	ID          int64   `json:"id"`
	Peer        User    `json:"peer"`
	LastMessage string  `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
	UpdatedAt   float64 `json:"updated_at"`
}

type AuthSuccess struct {
	User User `json:"user"`
}

type AuthCodeVerified struct {
	TempToken string `json:"temp_token"`
	Email     string `json:"email"`
}

type Success struct {
	Message string `json:"message,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}

// Response carries a free-form reply. Data is kept raw; Text unwraps the common
// string case.
type Response struct {
	Data json.RawMessage `json:"data"`
}

// Text returns Data as a string when it is a JSON string, or the raw JSON text
// otherwise.
func (r Response) Text() string {
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s
	}
	return string(r.Data)
}

type DialogsList struct {
	Dialogs []Dialog `json:"dialogs"`
}

type MessagesHistory struct {
	PeerID   int64         `json:"peer_id"`
	Messages []ChatMessage `json:"messages"`
}

// MessageNew is both the echo of a sent message and a push from a peer; pushes
// also carry SenderID.
type MessageNew struct {
	PeerID   int64       `json:"peer_id"`
	SenderID int64       `json:"sender_id,omitempty"`
	Message  ChatMessage `json:"message"`
}

// MessagesRead tells the sender that PeerID has read their messages.
type MessagesRead struct {
	PeerID int64 `json:"peer_id"`
}

type MessagesReadDone struct {
	PeerID int64 `json:"peer_id"`
}

type UserStatus struct {
	UserID   int64   `json:"user_id"`
	Status   string  `json:"status"`
	LastSeen float64 `json:"last_seen"`
}

// Online reports whether the status is "online".
func (u UserStatus) Online() bool { return u.Status == "online" }

type UserInfo struct {
	User User `json:"user"`
}

type UserProfileUpdated struct {
	User User `json:"user"`
}

type SearchResult struct {
	User User `json:"user"`
}

// CallSignal is a forwarded call.* message. Kind holds the full type, e.g.
// "call.offer"; Data is the opaque SDP, ICE candidate or reason.
type CallSignal struct {
	Kind     string          `json:"-"`
	SenderID int64           `json:"sender_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Unknown is any message whose type is not recognised.
type Unknown struct {
	Type string `json:"type"`
}

func (AuthSuccess) MessageType() string        { return TypeAuthSuccess }
func (AuthCodeVerified) MessageType() string   { return TypeAuthCodeVerified }
func (Success) MessageType() string            { return TypeSuccess }
func (Error) MessageType() string              { return TypeError }
func (Response) MessageType() string           { return TypeResponse }
func (DialogsList) MessageType() string        { return TypeDialogsList }
func (MessagesHistory) MessageType() string    { return TypeMessagesHistory }
func (MessageNew) MessageType() string         { return TypeMessageNew }
func (MessagesRead) MessageType() string       { return TypeMessagesRead }
func (MessagesReadDone) MessageType() string   { return TypeMessagesReadDone }
func (UserStatus) MessageType() string         { return TypeUserStatus }
func (UserInfo) MessageType() string           { return TypeUserInfo }
func (UserProfileUpdated) MessageType() string { return TypeUserProfileUpdated }
func (SearchResult) MessageType() string       { return TypeSearchResult }
func (c CallSignal) MessageType() string       { return c.Kind }
func (u Unknown) MessageType() string          { return u.Type }

func (AuthSuccess) appMessage()        {}
func (AuthCodeVerified) appMessage()   {}
func (Success) appMessage()            {}
func (Error) appMessage()              {}
func (Response) appMessage()           {}
func (DialogsList) appMessage()        {}
func (MessagesHistory) appMessage()    {}
func (MessageNew) appMessage()         {}
func (MessagesRead) appMessage()       {}
func (MessagesReadDone) appMessage()   {}
func (UserStatus) appMessage()         {}
func (UserInfo) appMessage()           {}
func (UserProfileUpdated) appMessage() {}
func (SearchResult) appMessage()       {}
func (CallSignal) appMessage()         {}
func (Unknown) appMessage()            {}
