package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventRoundTrip(t *testing.T) {
	ev := NewEvent(EventSendMessage, SendMessagePayload{Text: "hello"})
	assert.Equal(t, EventSendMessage, ev.Type)

	var p SendMessagePayload
	require.NoError(t, DecodePayload(ev, &p))
	assert.Equal(t, "hello", p.Text)
}

func TestDecodePayloadRejectsEmpty(t *testing.T) {
	var p SendMessagePayload
	err := DecodePayload(Event{Type: EventSendMessage}, &p)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodePayloadRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		event   string
		raw     string
		dst     Validator
	}{
		{"user-join without username", EventUserJoin, `{}`, &UserJoinPayload{}},
		{"send without text", EventSendMessage, `{"text":""}`, &SendMessagePayload{}},
		{"join-room without room", EventJoinRoom, `{"other":"x"}`, &JoinRoomPayload{}},
		{"react without id", EventReactToMessage, `{"reaction":"like"}`, &ReactPayload{}},
		{"react without reaction", EventReactToMessage, `{"messageId":"m1"}`, &ReactPayload{}},
		{"private without target", EventSendPrivateMessage, `{"text":"psst"}`, &PrivateMessagePayload{}},
		{"load-more with zero limit", EventLoadMoreMessages, `{"room":"general","limit":0,"offset":0}`, &LoadMorePayload{}},
		{"load-more with negative offset", EventLoadMoreMessages, `{"room":"general","limit":10,"offset":-1}`, &LoadMorePayload{}},
		{"search without room", EventSearchMessages, `{"query":"x"}`, &SearchPayload{}},
		{"ping without timestamp", EventPing, `{}`, &PingPayload{}},
		{"not even json", EventSendMessage, `{"text"`, &SendMessagePayload{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Event{Type: tc.event, Payload: json.RawMessage(tc.raw)}
			assert.ErrorIs(t, DecodePayload(ev, tc.dst), ErrMalformedPayload)
		})
	}
}

func TestDecodePayloadAcceptsValid(t *testing.T) {
	ev := Event{Type: EventLoadMoreMessages, Payload: json.RawMessage(`{"room":"general","limit":20,"offset":40}`)}
	var p LoadMorePayload
	require.NoError(t, DecodePayload(ev, &p))
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset)
}

func TestApplyReactionLastWriteWins(t *testing.T) {
	msg := Message{ID: "general-1"}

	msg.ApplyReaction("bob", "like")
	msg.ApplyReaction("bob", "like")
	require.Len(t, msg.Reactions, 1, "re-applying the same reaction is idempotent")
	assert.Equal(t, "like", msg.Reactions["bob"])

	msg.ApplyReaction("bob", "love")
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, "love", msg.Reactions["bob"], "latest overwrite wins")

	msg.ApplyReaction("carol", "like")
	assert.Len(t, msg.Reactions, 2)
}
