package runtime

import (
	"chat-sessions/contract"
	"chat-sessions/domain/event"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTypingIdle is how long a user stays marked as typing without a
// refreshing typing_start signal.
const DefaultTypingIdle = 2 * time.Second

// TypingEngine keeps the per-chat set of currently-typing users, debounced
// on an idle window. A state-change broadcast (the full typing list of the
// chat) fires only on set membership transitions, never on a plain debounce
// refresh: rapid "still typing" pings keep the user visible without
// flooding downstream consumers.
//
// The engine publishes through the injected Broadcaster and knows nothing
// about transport.
type TypingEngine struct {
	mu          sync.Mutex
	log         *slog.Logger
	broadcaster contract.Broadcaster
	debouncer   *Debouncer
	typing      map[uuid.UUID]map[string]struct{}
}

func NewTypingEngine(log *slog.Logger, broadcaster contract.Broadcaster, idle time.Duration) *TypingEngine {
	e := &TypingEngine{
		log:         log,
		broadcaster: broadcaster,
		typing:      make(map[uuid.UUID]map[string]struct{}),
	}
	e.debouncer = NewDebouncer(idle, e.expire)
	return e
}

// StartTyping marks the user as typing in the chat, or refreshes the idle
// countdown if already marked. Only the ABSENT -> TYPING transition emits
// a broadcast.
func (e *TypingEngine) StartTyping(userID string, chatID uuid.UUID) {
	e.mu.Lock()
	users, ok := e.typing[chatID]
	if !ok {
		users = make(map[string]struct{})
		e.typing[chatID] = users
	}
	_, already := users[userID]
	users[userID] = struct{}{}
	snapshot := e.snapshotLocked(chatID)
	e.mu.Unlock()

	e.debouncer.Reset(userID, chatID)

	if !already {
		e.log.Debug("user started typing", "user_id", userID, "chat_id", chatID)
		e.broadcast(chatID, snapshot)
	}
}

// StopTyping cancels the pending countdown and removes the user from the
// chat's typing set. A no-op (no broadcast) if the user was not marked.
func (e *TypingEngine) StopTyping(userID string, chatID uuid.UUID) {
	e.debouncer.Cancel(userID, chatID)
	e.remove(userID, chatID)
}

// RemoveUserEverywhere stops typing for the user in every chat where they
// are currently marked. Used on disconnect and leave.
func (e *TypingEngine) RemoveUserEverywhere(userID string) {
	e.mu.Lock()
	var chats []uuid.UUID
	for chatID, users := range e.typing {
		if _, ok := users[userID]; ok {
			chats = append(chats, chatID)
		}
	}
	e.mu.Unlock()

	for _, chatID := range chats {
		e.StopTyping(userID, chatID)
	}
}

// TypingUsers returns the current typing list for the chat, sorted.
func (e *TypingEngine) TypingUsers(chatID uuid.UUID) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(chatID)
}

// expire is wired as the debouncer callback: an idle timer that fired with
// no intervening reset behaves exactly as StopTyping.
func (e *TypingEngine) expire(userID string, chatID uuid.UUID) {
	e.log.Debug("typing idle window elapsed", "user_id", userID, "chat_id", chatID)
	e.remove(userID, chatID)
}

func (e *TypingEngine) remove(userID string, chatID uuid.UUID) {
	e.mu.Lock()
	users, ok := e.typing[chatID]
	if !ok {
		e.mu.Unlock()
		return
	}
	if _, member := users[userID]; !member {
		e.mu.Unlock()
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(e.typing, chatID)
	}
	snapshot := e.snapshotLocked(chatID)
	e.mu.Unlock()

	e.broadcast(chatID, snapshot)
}

func (e *TypingEngine) snapshotLocked(chatID uuid.UUID) []string {
	users := e.typing[chatID]
	snapshot := make([]string, 0, len(users))
	for userID := range users {
		snapshot = append(snapshot, userID)
	}
	sort.Strings(snapshot)
	return snapshot
}

func (e *TypingEngine) broadcast(chatID uuid.UUID, userIDs []string) {
	e.broadcaster.BroadcastToChat(context.Background(), chatID, event.ActiveTypingUsers{
		Chat:    chatID,
		UserIDs: userIDs,
	})
}
