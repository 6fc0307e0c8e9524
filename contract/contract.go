//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one live connection. Implementations
// must be safe for concurrent Consume calls and must preserve FIFO order
// per sink.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Removal is what the registry reports after a connection goes away.
// ChatsLeft lists every chat for which this was the user's last connection.
type Removal struct {
	UserID    string
	Known     bool
	ChatsLeft []uuid.UUID
}

// IRegistry is the bidirectional connection index: connection to user, and
// (user, chat) to the set of live connections. It owns its maps exclusively;
// all mutations are serialized behind its lock.
type IRegistry interface {
	// Register binds the connection to (user, chat). When the connection was
	// previously bound to a different user, every binding of that user is
	// dropped first and the displaced Removal is returned so callers can
	// announce the departure.
	Register(conn domain.ConnectionID, userID string, chatID uuid.UUID, sink EventSink) Removal
	Remove(conn domain.ConnectionID) Removal
	ConnectionsFor(userID string, chatID uuid.UUID) []domain.ConnectionID
	SinksFor(userID string, chatID uuid.UUID) []EventSink
	UserFor(conn domain.ConnectionID) (string, bool)
	SinkFor(conn domain.ConnectionID) (EventSink, bool)
	IsRegistered(conn domain.ConnectionID, chatID uuid.UUID) bool
	AllSinks() []EventSink
	Counts() (connections, pairs int)
}

// ITypingEngine tracks who is currently typing per chat, debounced on an
// idle window. Transitions are published through the injected Broadcaster;
// the engine itself knows nothing about transport.
type ITypingEngine interface {
	StartTyping(userID string, chatID uuid.UUID)
	StopTyping(userID string, chatID uuid.UUID)
	RemoveUserEverywhere(userID string)
	TypingUsers(chatID uuid.UUID) []string
}

// Broadcaster delivers an event to every connection of a chat's participants.
type Broadcaster interface {
	BroadcastToChat(ctx context.Context, chatID uuid.UUID, e event.DomainEvent)
}

// IChatLifecycle owns chat existence and status transitions, delegating
// persistence to the chat repository.
type IChatLifecycle interface {
	FindOrCreateActiveChatForUser(userID string) (domain.Chat, bool, error)
	Find(chatID uuid.UUID) (domain.Chat, error)
	Join(chatID uuid.UUID, userID string) (domain.Chat, error)
	Close(chatID uuid.UUID) (domain.Chat, error)
	Participants(chatID uuid.UUID) ([]domain.User, error)
	ActiveChats() ([]domain.ChatSnapshot, error)
}

// IIdentityProvider issues and resolves guest identities. The token lets a
// reconnecting client present the same guest id again.
type IIdentityProvider interface {
	CreateGuest() (domain.User, string, error)
	Resolve(token string) (domain.User, error)
}

type IChatRepository interface {
	CreateChat(chat domain.Chat) error
	FindChatByID(chatID uuid.UUID) (domain.Chat, error)
	FindActiveChatForUser(userID string) (*domain.Chat, error)
	AddParticipant(chatID uuid.UUID, userID string) error
	ListParticipants(chatID uuid.UUID) ([]string, error)
	SetChatStatus(chatID uuid.UUID, status domain.ChatStatus) error
	ListActiveChats() ([]domain.Chat, error)
}

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(chatID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
}

type IUserRepository interface {
	CreateUser(user domain.User) error
	GetUser(userID string) (domain.User, error)
}

// ISearchIndex is the full-text side of the message store.
type ISearchIndex interface {
	Index(message domain.Message) error
	Search(chatID uuid.UUID, query string, limit int) ([]domain.Message, error)
}
