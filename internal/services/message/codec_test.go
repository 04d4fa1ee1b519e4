package message_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samor/internal/domain"
	"samor/internal/services/message"
)

func TestDecode_Variants(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.AppMessage
	}{
		{
			`{"type":"auth_success","user":{"id":7,"username":"ann","display_name":"Ann","token":"t"}}`,
			domain.AuthSuccess{User: domain.User{ID: 7, Username: "ann", DisplayName: "Ann", Token: "t"}},
		},
		{
			`{"type":"auth_code_verified","temp_token":"x","email":"a@b"}`,
			domain.AuthCodeVerified{TempToken: "x", Email: "a@b"},
		},
		{`{"type":"success"}`, domain.Success{}},
		{`{"type":"error","message":"Unknown method"}`, domain.Error{Message: "Unknown method"}},
		{`{"type":"messages.read","peer_id":3}`, domain.MessagesRead{PeerID: 3}},
		{`{"type":"messages.read_done","peer_id":3}`, domain.MessagesReadDone{PeerID: 3}},
		{
			`{"type":"user.status","user_id":4,"status":"online","last_seen":0}`,
			domain.UserStatus{UserID: 4, Status: "online"},
		},
		{
			`{"type":"message.new","peer_id":2,"sender_id":2,"message":{"id":9,"sender_id":2,"content":"hi","type":"text","media_url":null,"is_read":false,"created_at":1.5}}`,
			domain.MessageNew{PeerID: 2, SenderID: 2, Message: domain.ChatMessage{ID: 9, SenderID: 2, Content: "hi", Type: "text", CreatedAt: 1.5}},
		},
		{
			`{"type":"dialogs.list","dialogs":[{"id":1,"peer":{"id":2,"username":"bob","display_name":"Bob","is_online":true},"last_message":"[photo]","unread_count":2,"updated_at":10}]}`,
			domain.DialogsList{Dialogs: []domain.Dialog{{ID: 1, Peer: domain.User{ID: 2, Username: "bob", DisplayName: "Bob", IsOnline: true}, LastMessage: "[photo]", UnreadCount: 2, UpdatedAt: 10}}},
		},
		{`{"type":"search_result","user":{"id":5,"username":"eve"}}`, domain.SearchResult{User: domain.User{ID: 5, Username: "eve"}}},
		{`{"type":"something.new","x":1}`, domain.Unknown{Type: "something.new"}},
		{`{}`, domain.Unknown{}},
	}
	for _, tc := range cases {
		got, err := message.Decode([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestDecode_Response(t *testing.T) {
	m, err := message.Decode([]byte(`{"type":"response","data":"Echo: hi"}`))
	require.NoError(t, err)
	r, ok := m.(domain.Response)
	require.True(t, ok)
	assert.Equal(t, "Echo: hi", r.Text())
}

func TestDecode_CallSignal(t *testing.T) {
	m, err := message.Decode([]byte(`{"type":"call.ice_candidate","sender_id":11,"data":{"candidate":"c"}}`))
	require.NoError(t, err)
	c, ok := m.(domain.CallSignal)
	require.True(t, ok)
	assert.Equal(t, domain.TypeCallICECandidate, c.Kind)
	assert.Equal(t, domain.TypeCallICECandidate, c.MessageType())
	assert.Equal(t, int64(11), c.SenderID)
	assert.JSONEq(t, `{"candidate":"c"}`, string(c.Data))
}

func TestDecode_Errors(t *testing.T) {
	_, err := message.Decode([]byte(`"just a string"`))
	assert.ErrorIs(t, err, message.ErrNotObject)

	_, err = message.Decode([]byte(`{"type":"messages.read","peer_id":"three"}`))
	assert.ErrorIs(t, err, message.ErrBadBody)

	_, err = message.Decode([]byte(`{"type":"call.offer","sender_id":"x"}`))
	assert.ErrorIs(t, err, message.ErrBadBody)
}

func TestRequest_RoundTrip(t *testing.T) {
	req, err := message.NewRequest("echo", map[string]string{"text": "hello"})
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"echo","args":{"text":"hello"}}`, string(raw))

	back, err := message.ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "echo", back.Method)

	var args struct{ Text string }
	require.NoError(t, message.Args(back, &args))
	assert.Equal(t, "hello", args.Text)
}

func TestRequest_NoArgs(t *testing.T) {
	req, err := message.NewRequest("ping", nil)
	require.NoError(t, err)
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"ping"}`, string(raw))

	var args struct{ Text string }
	require.NoError(t, message.Args(req, &args))
	assert.Empty(t, args.Text)
}

func TestRequest_Errors(t *testing.T) {
	_, err := message.NewRequest("", nil)
	assert.ErrorIs(t, err, message.ErrNoMethod)

	_, err = message.ParseRequest([]byte(`{"args":{}}`))
	assert.ErrorIs(t, err, message.ErrNoMethod)

	_, err = message.ParseRequest([]byte(`[1,2]`))
	assert.ErrorIs(t, err, message.ErrNotObject)

	err = message.Args(domain.Request{Method: "echo", Args: json.RawMessage(`[1]`)}, &struct{ Text string }{})
	assert.ErrorIs(t, err, message.ErrBadBody)
}
