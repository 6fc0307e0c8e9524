package server

import (
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Envelope is the wire frame for both directions: an event name plus a
// payload whose shape depends on the name.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	EventOpenChat       = "open_chat"
	EventJoinChat       = "join_chat"
	EventSendMessage    = "send_message"
	EventCloseChat      = "close_chat"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventGetActiveChats = "get_active_chats"
	EventSearchMessages = "search_messages"
)

type OpenChatPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type JoinChatPayload struct {
	ChatID string `json:"chatId" validate:"required,uuid"`
	UserID string `json:"userId" validate:"required"`
}

type SendMessagePayload struct {
	ChatID string `json:"chatId" validate:"required,uuid"`
	Text   string `json:"text" validate:"required"`
}

type ChatPayload struct {
	ChatID string `json:"chatId" validate:"required,uuid"`
}

type SearchPayload struct {
	ChatID string `json:"chatId" validate:"required,uuid"`
	Query  string `json:"query" validate:"required"`
}

type chatDTO struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type userDTO struct {
	ID      string `json:"id"`
	IsGuest bool   `json:"isGuest"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type snapshotDTO struct {
	Chat         chatDTO   `json:"chat"`
	Participants []userDTO `json:"participants"`
}

func fromChat(c domain.Chat) chatDTO {
	return chatDTO{ID: c.ID.String(), Status: string(c.Status), CreatedAt: c.CreatedAt}
}

func fromUser(u domain.User) userDTO {
	return userDTO{ID: u.ID, IsGuest: u.IsGuest}
}

func fromMessage(m domain.Message) messageDTO {
	return messageDTO{
		ID:        m.ID.String(),
		ChatID:    m.ChatID.String(),
		UserID:    m.SenderID,
		Text:      m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt,
	}
}

func fromMessages(messages []domain.Message) []messageDTO {
	return lo.Map(messages, func(m domain.Message, _ int) messageDTO {
		return fromMessage(m)
	})
}

func fromSnapshots(snapshots []domain.ChatSnapshot) []snapshotDTO {
	return lo.Map(snapshots, func(s domain.ChatSnapshot, _ int) snapshotDTO {
		return snapshotDTO{
			Chat: fromChat(s.Chat),
			Participants: lo.Map(s.Participants, func(u domain.User, _ int) userDTO {
				return fromUser(u)
			}),
		}
	})
}

// Encode maps a domain event onto its outbound envelope.
func Encode(e event.DomainEvent) ([]byte, error) {
	var name string
	var payload any

	switch evt := e.(type) {
	case event.ChatOpened:
		name = "chat_opened"
		payload = struct {
			Chat  chatDTO `json:"chat"`
			User  userDTO `json:"user"`
			Token string  `json:"token,omitempty"`
		}{fromChat(evt.Chat), fromUser(evt.User), evt.Token}
	case event.ChatHistory:
		name = "chat_history"
		payload = struct {
			ChatID   string       `json:"chatId"`
			Messages []messageDTO `json:"messages"`
		}{evt.Chat.String(), fromMessages(evt.Messages)}
	case event.NewMessage:
		name = "new_message"
		payload = struct {
			Message messageDTO `json:"message"`
			User    userDTO    `json:"user"`
		}{fromMessage(evt.Message), fromUser(evt.Sender)}
	case event.UserJoined:
		name = "user_joined"
		payload = struct {
			ChatID string `json:"chatId"`
			UserID string `json:"userId"`
		}{evt.Chat.String(), evt.UserID}
	case event.UserLeft:
		name = "user_left"
		payload = struct {
			ChatID string `json:"chatId"`
			UserID string `json:"userId"`
		}{evt.Chat.String(), evt.UserID}
	case event.ChatClosed:
		name = "chat_closed"
		payload = struct {
			ChatID string `json:"chatId"`
		}{evt.Chat.String()}
	case event.ActiveTypingUsers:
		name = "active_typing_users"
		payload = struct {
			ChatID  string   `json:"chatId"`
			UserIDs []string `json:"userIds"`
		}{evt.Chat.String(), evt.UserIDs}
	case event.ActiveChatsUpdated:
		name = "active_chats_updated"
		payload = struct {
			Chats []snapshotDTO `json:"chats"`
		}{fromSnapshots(evt.Snapshots)}
	case event.SearchResults:
		name = "search_results"
		payload = struct {
			ChatID   string       `json:"chatId"`
			Query    string       `json:"query"`
			Messages []messageDTO `json:"messages"`
		}{evt.Chat.String(), evt.Query, fromMessages(evt.Messages)}
	case event.OperationFailed:
		name = "operation_failed"
		payload = struct {
			ChatID  string `json:"chatId,omitempty"`
			Code    string `json:"code"`
			Message string `json:"message"`
		}{chatIDOrEmpty(evt.Chat), evt.Code, evt.Message}
	default:
		return nil, fmt.Errorf("unmapped event type %T", e)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Payload: raw})
}

func chatIDOrEmpty(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
