package runtime

import (
	"chat-sessions/contract"
	"chat-sessions/domain"
	"sync"

	"github.com/google/uuid"
)

type Set map[domain.ConnectionID]struct{}

type pairKey struct {
	userID string
	chatID uuid.UUID
}

// Registry is the sole owner of the connection index. It maps each live
// connection to its user and each (user, chat) pair to the set of live
// connections, so fan-out can resolve "every device of every participant".
// All methods are safe for concurrent use; no I/O happens under the lock.
type Registry struct {
	mu    sync.RWMutex
	users map[domain.ConnectionID]string
	sinks map[domain.ConnectionID]contract.EventSink
	pairs map[pairKey]Set
	chats map[domain.ConnectionID]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[domain.ConnectionID]string),
		sinks: make(map[domain.ConnectionID]contract.EventSink),
		pairs: make(map[pairKey]Set),
		chats: make(map[domain.ConnectionID]map[uuid.UUID]struct{}),
	}
}

// Register adds the connection to the set for (user, chat) and records the
// connection-to-user binding. Idempotent: registering the same triple twice
// is a no-op. A connection never maps to two users; re-registering under a
// different user first drops every binding of the previous one, and that
// displaced Removal is returned so the departure can be announced to the
// chats the previous user just left.
func (r *Registry) Register(conn domain.ConnectionID, userID string, chatID uuid.UUID, sink contract.EventSink) contract.Removal {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced contract.Removal
	if previous, ok := r.users[conn]; ok && previous != userID {
		displaced = r.removeLocked(conn)
	}

	r.users[conn] = userID
	r.sinks[conn] = sink

	key := pairKey{userID: userID, chatID: chatID}
	if _, ok := r.pairs[key]; !ok {
		r.pairs[key] = make(Set)
	}
	r.pairs[key][conn] = struct{}{}

	if _, ok := r.chats[conn]; !ok {
		r.chats[conn] = make(map[uuid.UUID]struct{})
	}
	r.chats[conn][chatID] = struct{}{}

	return displaced
}

// Remove detaches the connection from every (user, chat) set it belonged to.
// Each pair whose set becomes empty contributes to ChatsLeft: that user has
// no remaining device in that chat. Unknown connections are not an error;
// pre-handshake disconnects are expected.
func (r *Registry) Remove(conn domain.ConnectionID) contract.Removal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(conn)
}

func (r *Registry) removeLocked(conn domain.ConnectionID) contract.Removal {
	userID, known := r.users[conn]
	if !known {
		return contract.Removal{}
	}

	var chatsLeft []uuid.UUID
	for chatID := range r.chats[conn] {
		key := pairKey{userID: userID, chatID: chatID}
		if set, ok := r.pairs[key]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.pairs, key)
				chatsLeft = append(chatsLeft, chatID)
			}
		}
	}

	delete(r.users, conn)
	delete(r.sinks, conn)
	delete(r.chats, conn)

	return contract.Removal{UserID: userID, Known: true, ChatsLeft: chatsLeft}
}

func (r *Registry) ConnectionsFor(userID string, chatID uuid.UUID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.pairs[pairKey{userID: userID, chatID: chatID}]
	if !ok {
		return nil
	}
	conns := make([]domain.ConnectionID, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) SinksFor(userID string, chatID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.pairs[pairKey{userID: userID, chatID: chatID}]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(set))
	for conn := range set {
		if sink, exists := r.sinks[conn]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) UserFor(conn domain.ConnectionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.users[conn]
	return userID, ok
}

func (r *Registry) SinkFor(conn domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[conn]
	return sink, ok
}

// IsRegistered reports whether the connection currently belongs to the chat.
func (r *Registry) IsRegistered(conn domain.ConnectionID, chatID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.users[conn]
	if !ok {
		return false
	}
	set, ok := r.pairs[pairKey{userID: userID, chatID: chatID}]
	if !ok {
		return false
	}
	_, ok = set[conn]
	return ok
}

// AllSinks returns the outbound channel of every live registered connection.
// Used for process-wide pushes like the operator snapshot.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Counts() (connections, pairs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), len(r.pairs)
}
