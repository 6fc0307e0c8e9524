package server

import (
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, raw []byte) (string, map[string]any) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	payload := map[string]any{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return env.Event, payload
}

func Test_Encode_ChatOpened(t *testing.T) {
	req := require.New(t)
	chat := domain.NewChat()

	raw, err := Encode(event.ChatOpened{
		Chat:  chat,
		User:  domain.User{ID: "guest-1", IsGuest: true},
		Token: "resume",
	})
	req.NoError(err)

	name, payload := decodeEnvelope(t, raw)
	req.Equal("chat_opened", name)
	req.Equal("resume", payload["token"])

	user := payload["user"].(map[string]any)
	req.Equal("guest-1", user["id"])
	req.Equal(true, user["isGuest"])

	chatPayload := payload["chat"].(map[string]any)
	req.Equal(chat.ID.String(), chatPayload["id"])
	req.Equal("ACTIVE", chatPayload["status"])
}

func Test_Encode_NewMessage(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  "alice",
		Content:   "hello",
		Lang:      "en",
		CreatedAt: time.Now().UTC(),
	}

	raw, err := Encode(event.NewMessage{Message: message, Sender: domain.User{ID: "alice"}})
	req.NoError(err)

	name, payload := decodeEnvelope(t, raw)
	req.Equal("new_message", name)

	msg := payload["message"].(map[string]any)
	req.Equal("hello", msg["text"])
	req.Equal("alice", msg["userId"])
	req.Equal(chatID.String(), msg["chatId"])
}

func Test_Encode_Typing_And_Membership_Events(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()

	raw, err := Encode(event.ActiveTypingUsers{Chat: chatID, UserIDs: []string{"alice", "bob"}})
	req.NoError(err)
	name, payload := decodeEnvelope(t, raw)
	req.Equal("active_typing_users", name)
	req.Equal(chatID.String(), payload["chatId"])
	req.Len(payload["userIds"], 2)

	raw, err = Encode(event.UserLeft{Chat: chatID, UserID: "alice"})
	req.NoError(err)
	name, payload = decodeEnvelope(t, raw)
	req.Equal("user_left", name)
	req.Equal("alice", payload["userId"])

	raw, err = Encode(event.ChatClosed{Chat: chatID})
	req.NoError(err)
	name, payload = decodeEnvelope(t, raw)
	req.Equal("chat_closed", name)
	req.Equal(chatID.String(), payload["chatId"])
}

func Test_Encode_OperationFailed_Omits_Nil_Chat(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(event.OperationFailed{
		Chat:    uuid.Nil,
		Code:    "INVALID_STATE",
		Message: "malformed request",
	})
	req.NoError(err)

	name, payload := decodeEnvelope(t, raw)
	req.Equal("operation_failed", name)
	req.Equal("INVALID_STATE", payload["code"])
	req.NotContains(payload, "chatId")
}
