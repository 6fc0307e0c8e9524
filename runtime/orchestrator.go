// Package runtime handles the per-connection session flow: registration,
// typing state, message fan-out and failure reporting. It orchestrates the
// system without containing persistence or domain rules.
package runtime

import (
	"chat-sessions/contract"
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	"chat-sessions/errors"
	"chat-sessions/moderation"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const searchLimit = 50

// Orchestrator is the single entry point for inbound session operations. It
// validates preconditions against the lifecycle manager before touching the
// registry, so a failed operation never leaves partial state behind, and it
// reports expected failures only to the connection that caused them.
type Orchestrator struct {
	log       *slog.Logger
	registry  contract.IRegistry
	typing    contract.ITypingEngine
	lifecycle contract.IChatLifecycle
	identity  contract.IIdentityProvider
	users     contract.IUserRepository
	messages  contract.IMessageRepository
	search    contract.ISearchIndex
	moderator *moderation.Moderator
}

func NewOrchestrator(log *slog.Logger, registry contract.IRegistry,
	lifecycle contract.IChatLifecycle, identity contract.IIdentityProvider,
	users contract.IUserRepository, messages contract.IMessageRepository,
	search contract.ISearchIndex, moderator *moderation.Moderator,
	typingIdle time.Duration) *Orchestrator {
	o := &Orchestrator{
		log:       log,
		registry:  registry,
		lifecycle: lifecycle,
		identity:  identity,
		users:     users,
		messages:  messages,
		search:    search,
		moderator: moderator,
	}
	o.typing = NewTypingEngine(log, o, typingIdle)
	return o
}

// Typing exposes the engine for introspection (telemetry, tests).
func (o *Orchestrator) Typing() contract.ITypingEngine {
	return o.typing
}

// OnOpenChat resolves the caller's identity, finds or creates their ACTIVE
// chat, registers the connection and replies with the chat, the history and
// a resume token for guests. Everyone then receives a fresh chat snapshot.
func (o *Orchestrator) OnOpenChat(ctx context.Context, conn domain.ConnectionID,
	sink contract.EventSink, userID, token string) (domain.Chat, error) {
	user, resumeToken, err := o.resolveUser(userID, token)
	if err != nil {
		o.report(ctx, sink, uuid.Nil, err)
		return domain.Chat{}, err
	}

	chat, created, err := o.lifecycle.FindOrCreateActiveChatForUser(user.ID)
	if err != nil {
		o.report(ctx, sink, uuid.Nil, err)
		return domain.Chat{}, err
	}

	displaced := o.registry.Register(conn, user.ID, chat.ID, sink)
	o.announceDeparture(ctx, displaced)
	o.consume(ctx, sink, event.ChatOpened{Chat: chat, User: user, Token: resumeToken})
	o.sendHistory(ctx, sink, chat.ID)
	o.broadcastSnapshot(ctx)

	o.log.Info("chat opened", "chat_id", chat.ID, "user_id", user.ID, "created", created)
	return chat, nil
}

// OnJoinChat adds the user to an existing ACTIVE chat. Validation happens
// before registration: joining a missing or closed chat changes nothing.
func (o *Orchestrator) OnJoinChat(ctx context.Context, conn domain.ConnectionID,
	sink contract.EventSink, chatID uuid.UUID, userID string) (domain.Chat, error) {
	chat, err := o.lifecycle.Join(chatID, userID)
	if err != nil {
		o.report(ctx, sink, chatID, err)
		return domain.Chat{}, err
	}

	displaced := o.registry.Register(conn, userID, chatID, sink)
	o.announceDeparture(ctx, displaced)
	o.consume(ctx, sink, event.ChatOpened{Chat: chat, User: o.lookupUser(userID)})
	o.sendHistory(ctx, sink, chatID)
	o.broadcastToChatExcept(ctx, chatID, conn, event.UserJoined{Chat: chatID, UserID: userID})
	o.broadcastSnapshot(ctx)

	o.log.Info("chat joined", "chat_id", chatID, "user_id", userID)
	return chat, nil
}

// OnSendMessage moderates, persists, indexes and fans the message out to
// every connection of every participant, the sender's included. A closed
// chat rejects the message with no broadcast at all.
func (o *Orchestrator) OnSendMessage(ctx context.Context, conn domain.ConnectionID,
	chatID uuid.UUID, text string) (domain.Message, error) {
	sink, _ := o.registry.SinkFor(conn)

	senderID, ok := o.registry.UserFor(conn)
	if !ok {
		o.report(ctx, sink, chatID, errors.ErrUnknownConnection)
		return domain.Message{}, errors.ErrUnknownConnection
	}

	chat, err := o.lifecycle.Find(chatID)
	if err != nil {
		o.report(ctx, sink, chatID, err)
		return domain.Message{}, err
	}
	if chat.IsClosed() {
		o.report(ctx, sink, chatID, errors.ErrChatClosed)
		return domain.Message{}, errors.ErrChatClosed
	}

	censored, flagged := o.moderator.Censor(text)
	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   censored,
		Lang:      moderation.DetectLang(censored),
		CreatedAt: time.Now().UTC(),
	}
	if flagged {
		o.log.Warn("message censored", "chat_id", chatID, "sender_id", senderID)
	}

	if err := o.messages.StoreMessage(message); err != nil {
		o.report(ctx, sink, chatID, fmt.Errorf("store message: %w", err))
		return domain.Message{}, err
	}
	if err := o.search.Index(message); err != nil {
		// The index is a convenience view; the stored message stays the truth.
		o.log.Warn("index message", "message_id", message.ID, "error", err)
	}

	o.BroadcastToChat(ctx, chatID, event.NewMessage{Message: message, Sender: o.lookupUser(senderID)})
	return message, nil
}

// OnCloseChat transitions the chat to CLOSED and notifies every registered
// participant connection. Closing twice is observably the same as once.
func (o *Orchestrator) OnCloseChat(ctx context.Context, conn domain.ConnectionID,
	chatID uuid.UUID) (domain.Chat, error) {
	sink, _ := o.registry.SinkFor(conn)

	chat, err := o.lifecycle.Close(chatID)
	if err != nil {
		o.report(ctx, sink, chatID, err)
		return domain.Chat{}, err
	}

	o.BroadcastToChat(ctx, chatID, event.ChatClosed{Chat: chatID})
	o.broadcastSnapshot(ctx)
	return chat, nil
}

// OnDisconnect drops every binding of the connection. For each chat where
// this was the user's last connection, the remaining participants get a
// single user-left notification. Typing state for the user is cleared so no
// stale indicator survives the disconnect.
func (o *Orchestrator) OnDisconnect(ctx context.Context, conn domain.ConnectionID) {
	removal := o.registry.Remove(conn)
	if !removal.Known {
		return
	}

	o.announceDeparture(ctx, removal)
	o.log.Info("connection closed", "conn", conn, "user_id", removal.UserID, "chats_left", len(removal.ChatsLeft))
}

// announceDeparture emits one user-left per chat the user fully left and
// clears their typing state. Covers both disconnects and connections that
// re-register under another identity.
func (o *Orchestrator) announceDeparture(ctx context.Context, removal contract.Removal) {
	if !removal.Known {
		return
	}
	for _, chatID := range removal.ChatsLeft {
		o.BroadcastToChat(ctx, chatID, event.UserLeft{Chat: chatID, UserID: removal.UserID})
	}
	o.typing.RemoveUserEverywhere(removal.UserID)
}

// OnTypingStart marks the user as typing. The engine only broadcasts on the
// absent-to-typing transition; repeats merely rearm the idle timer.
func (o *Orchestrator) OnTypingStart(ctx context.Context, conn domain.ConnectionID, chatID uuid.UUID) error {
	userID, err := o.typingPreconditions(ctx, conn, chatID)
	if err != nil {
		return err
	}
	o.typing.StartTyping(userID, chatID)
	return nil
}

// OnTypingStop removes the user from the typing set ahead of the idle timer.
func (o *Orchestrator) OnTypingStop(ctx context.Context, conn domain.ConnectionID, chatID uuid.UUID) error {
	userID, err := o.typingPreconditions(ctx, conn, chatID)
	if err != nil {
		return err
	}
	o.typing.StopTyping(userID, chatID)
	return nil
}

// OnGetActiveChats replies to the requesting connection only.
func (o *Orchestrator) OnGetActiveChats(ctx context.Context, sink contract.EventSink) error {
	snapshots, err := o.lifecycle.ActiveChats()
	if err != nil {
		o.report(ctx, sink, uuid.Nil, err)
		return err
	}
	o.consume(ctx, sink, event.ActiveChatsUpdated{Snapshots: snapshots})
	return nil
}

// OnSearchMessages runs a full-text query scoped to one chat and replies to
// the requesting connection only.
func (o *Orchestrator) OnSearchMessages(ctx context.Context, sink contract.EventSink,
	chatID uuid.UUID, query string) error {
	if _, err := o.lifecycle.Find(chatID); err != nil {
		o.report(ctx, sink, chatID, err)
		return err
	}
	messages, err := o.search.Search(chatID, query, searchLimit)
	if err != nil {
		o.report(ctx, sink, chatID, fmt.Errorf("search: %w", err))
		return err
	}
	o.consume(ctx, sink, event.SearchResults{Chat: chatID, Query: query, Messages: messages})
	return nil
}

// BroadcastToChat delivers the event to every connection of every current
// participant of the chat.
func (o *Orchestrator) BroadcastToChat(ctx context.Context, chatID uuid.UUID, e event.DomainEvent) {
	participants, err := o.lifecycle.Participants(chatID)
	if err != nil {
		o.log.Error("resolve participants", "chat_id", chatID, "error", err)
		return
	}
	for _, participant := range participants {
		for _, sink := range o.registry.SinksFor(participant.ID, chatID) {
			o.consume(ctx, sink, e)
		}
	}
}

func (o *Orchestrator) broadcastToChatExcept(ctx context.Context, chatID uuid.UUID,
	except domain.ConnectionID, e event.DomainEvent) {
	participants, err := o.lifecycle.Participants(chatID)
	if err != nil {
		o.log.Error("resolve participants", "chat_id", chatID, "error", err)
		return
	}
	for _, participant := range participants {
		for _, conn := range o.registry.ConnectionsFor(participant.ID, chatID) {
			if conn == except {
				continue
			}
			if sink, ok := o.registry.SinkFor(conn); ok {
				o.consume(ctx, sink, e)
			}
		}
	}
}

func (o *Orchestrator) broadcastSnapshot(ctx context.Context) {
	snapshots, err := o.lifecycle.ActiveChats()
	if err != nil {
		o.log.Error("build chat snapshot", "error", err)
		return
	}
	e := event.ActiveChatsUpdated{Snapshots: snapshots}
	for _, sink := range o.registry.AllSinks() {
		o.consume(ctx, sink, e)
	}
}

// resolveUser picks the caller's identity: an explicit user id wins, then a
// resume token, then a freshly minted guest. A stale or forged token does
// not block the caller; it degrades to a new guest identity.
func (o *Orchestrator) resolveUser(userID, token string) (domain.User, string, error) {
	if userID != "" {
		user, err := o.users.GetUser(userID)
		if err != nil {
			user = domain.User{ID: userID, CreatedAt: time.Now().UTC()}
			if err := o.users.CreateUser(user); err != nil {
				return domain.User{}, "", fmt.Errorf("create user: %w", err)
			}
		}
		return user, "", nil
	}
	if token != "" {
		user, err := o.identity.Resolve(token)
		if err == nil {
			return user, token, nil
		}
		o.log.Warn("resume token rejected", "error", err)
	}
	return o.identity.CreateGuest()
}

func (o *Orchestrator) typingPreconditions(ctx context.Context, conn domain.ConnectionID,
	chatID uuid.UUID) (string, error) {
	sink, _ := o.registry.SinkFor(conn)

	userID, ok := o.registry.UserFor(conn)
	if !ok || !o.registry.IsRegistered(conn, chatID) {
		o.report(ctx, sink, chatID, errors.ErrUnknownConnection)
		return "", errors.ErrUnknownConnection
	}

	chat, err := o.lifecycle.Find(chatID)
	if err != nil {
		o.report(ctx, sink, chatID, err)
		return "", err
	}
	if chat.IsClosed() {
		o.report(ctx, sink, chatID, errors.ErrChatClosed)
		return "", errors.ErrChatClosed
	}
	return userID, nil
}

func (o *Orchestrator) lookupUser(userID string) domain.User {
	user, err := o.users.GetUser(userID)
	if err != nil {
		return domain.User{ID: userID}
	}
	return user
}

func (o *Orchestrator) sendHistory(ctx context.Context, sink contract.EventSink, chatID uuid.UUID) {
	messages, _, err := o.messages.GetMessages(chatID, nil)
	if err != nil {
		o.log.Error("load history", "chat_id", chatID, "error", err)
		return
	}
	// Stored newest first; the client expects chronological order.
	o.consume(ctx, sink, event.ChatHistory{Chat: chatID, Messages: lo.Reverse(messages)})
}

// report sends an operation failure to the originating connection only.
// Expected failures keep their message; anything internal is logged with the
// details and collapses to a generic message on the wire.
func (o *Orchestrator) report(ctx context.Context, sink contract.EventSink, chatID uuid.UUID, err error) {
	kind := errors.KindOf(err)
	if kind == errors.KindInternal {
		o.log.Error("operation failed", "chat_id", chatID, "error", err)
	}
	if sink == nil {
		return
	}
	o.consume(ctx, sink, event.OperationFailed{
		Chat:    chatID,
		Code:    string(kind),
		Message: errors.PublicMessage(err),
	})
}

func (o *Orchestrator) consume(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		o.log.Warn("sink rejected event", "error", err)
	}
}
