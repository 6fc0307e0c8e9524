package services

import (
	"chat-sessions/contract"
	"chat-sessions/domain"
	"chat-sessions/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ChatLifecycle owns chat existence and the ACTIVE -> CLOSED transition,
// plus participant membership. Persistence is delegated to the repositories;
// the only state held here is the per-user serialization needed so that two
// concurrent open-chat calls for one user cannot race into two chats.
type ChatLifecycle struct {
	log   *slog.Logger
	chats contract.IChatRepository
	users contract.IUserRepository

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewChatLifecycle(log *slog.Logger, chats contract.IChatRepository, users contract.IUserRepository) *ChatLifecycle {
	return &ChatLifecycle{
		log:       log,
		chats:     chats,
		users:     users,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// FindOrCreateActiveChatForUser returns the user's current ACTIVE chat, or
// creates one (persisting the chat and the participant edge) if none exists.
// Calls for the same user are serialized; this is what enforces the
// at-most-one-active-chat-per-user invariant.
func (l *ChatLifecycle) FindOrCreateActiveChatForUser(userID string) (domain.Chat, bool, error) {
	lock := l.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.chats.FindActiveChatForUser(userID)
	if err != nil {
		return domain.Chat{}, false, fmt.Errorf("find active chat: %w", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	chat := domain.NewChat()
	if err := l.chats.CreateChat(chat); err != nil {
		return domain.Chat{}, false, fmt.Errorf("create chat: %w", err)
	}
	if err := l.chats.AddParticipant(chat.ID, userID); err != nil {
		return domain.Chat{}, false, fmt.Errorf("add participant: %w", err)
	}
	l.log.Info("chat created", "chat_id", chat.ID, "user_id", userID)
	return chat, true, nil
}

// Find returns the chat regardless of status.
func (l *ChatLifecycle) Find(chatID uuid.UUID) (domain.Chat, error) {
	return l.findChat(chatID)
}

// findChat keeps the not-found sentinel as-is and wraps any other store
// failure so it still classifies as internal at the reporting boundary.
func (l *ChatLifecycle) findChat(chatID uuid.UUID) (domain.Chat, error) {
	chat, err := l.chats.FindChatByID(chatID)
	if err != nil {
		if stderrors.Is(err, errors.ErrChatNotFound) {
			return domain.Chat{}, errors.ErrChatNotFound
		}
		return domain.Chat{}, fmt.Errorf("find chat %s: %w", chatID, err)
	}
	return chat, nil
}

// Join persists a participant edge. Missing and closed chats both surface
// as not-found: a closed chat no longer accepts members.
func (l *ChatLifecycle) Join(chatID uuid.UUID, userID string) (domain.Chat, error) {
	chat, err := l.findChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.IsClosed() {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err := l.chats.AddParticipant(chatID, userID); err != nil {
		return domain.Chat{}, fmt.Errorf("add participant: %w", err)
	}
	return chat, nil
}

// Close transitions the chat to CLOSED. Idempotent: closing an already
// closed chat returns it unchanged, since re-close attempts are expected
// during noisy disconnect storms.
func (l *ChatLifecycle) Close(chatID uuid.UUID) (domain.Chat, error) {
	chat, err := l.findChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.IsClosed() {
		return chat, nil
	}
	if err := l.chats.SetChatStatus(chatID, domain.StatusClosed); err != nil {
		return domain.Chat{}, fmt.Errorf("set chat status: %w", err)
	}
	chat.Status = domain.StatusClosed
	l.log.Info("chat closed", "chat_id", chatID)
	return chat, nil
}

// Participants resolves the chat's member ids into user records. A missing
// user record degrades to a bare id rather than failing the whole lookup.
func (l *ChatLifecycle) Participants(chatID uuid.UUID) ([]domain.User, error) {
	ids, err := l.chats.ListParticipants(chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := l.users.GetUser(id)
		if err != nil {
			user = domain.User{ID: id}
		}
		users = append(users, user)
	}
	return users, nil
}

// ActiveChats builds the operator snapshot of every ACTIVE chat with its
// participants.
func (l *ChatLifecycle) ActiveChats() ([]domain.ChatSnapshot, error) {
	chats, err := l.chats.ListActiveChats()
	if err != nil {
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	snapshots := make([]domain.ChatSnapshot, 0, len(chats))
	for _, chat := range chats {
		participants, err := l.Participants(chat.ID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, domain.ChatSnapshot{Chat: chat, Participants: participants})
	}
	return snapshots, nil
}

func (l *ChatLifecycle) lockFor(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	return lock
}
