package event

import (
	"chat-sessions/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything the session layer pushes to live connections.
// ChatID scopes the event to one conversation; uuid.Nil means process-wide
// (operator snapshots).
type DomainEvent interface {
	ChatID() uuid.UUID
}

// ChatOpened is delivered to the connection that opened (or re-opened) a chat.
type ChatOpened struct {
	Chat  domain.Chat
	User  domain.User
	Token string // resume token for this guest identity
}

func (e ChatOpened) ChatID() uuid.UUID { return e.Chat.ID }

// ChatHistory carries the stored backlog to one connection after open.
type ChatHistory struct {
	Chat     uuid.UUID
	Messages []domain.Message
}

func (e ChatHistory) ChatID() uuid.UUID { return e.Chat }

// NewMessage is fanned out to every connection of every participant.
type NewMessage struct {
	Message domain.Message
	Sender  domain.User
}

func (e NewMessage) ChatID() uuid.UUID { return e.Message.ChatID }

type UserJoined struct {
	Chat   uuid.UUID
	UserID string
}

func (e UserJoined) ChatID() uuid.UUID { return e.Chat }

type UserLeft struct {
	Chat   uuid.UUID
	UserID string
}

func (e UserLeft) ChatID() uuid.UUID { return e.Chat }

type ChatClosed struct {
	Chat uuid.UUID
}

func (e ChatClosed) ChatID() uuid.UUID { return e.Chat }

// ActiveTypingUsers is the full current typing list for a chat, emitted on
// every membership transition of the typing set.
type ActiveTypingUsers struct {
	Chat    uuid.UUID
	UserIDs []string
}

func (e ActiveTypingUsers) ChatID() uuid.UUID { return e.Chat }

// ActiveChatsUpdated is the operator view snapshot, pushed to every
// connection whenever the set of active chats changes.
type ActiveChatsUpdated struct {
	Snapshots []domain.ChatSnapshot
}

func (e ActiveChatsUpdated) ChatID() uuid.UUID { return uuid.Nil }

// SearchResults answers a search_messages request on one connection.
type SearchResults struct {
	Chat     uuid.UUID
	Query    string
	Messages []domain.Message
}

func (e SearchResults) ChatID() uuid.UUID { return e.Chat }

// OperationFailed reports an expected failure to the originating connection
// only. Code is one of the errors package kinds.
type OperationFailed struct {
	Chat    uuid.UUID
	Code    string
	Message string
}

func (e OperationFailed) ChatID() uuid.UUID { return e.Chat }
