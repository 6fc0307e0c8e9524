// Package domain contains core concepts of the chat session layer.
// This file defines the Chat aggregate and its status lifecycle.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatStatus string

const (
	StatusActive ChatStatus = "ACTIVE"
	StatusClosed ChatStatus = "CLOSED"
)

// Chat represents one conversation. Status transitions are monotonic:
// once CLOSED a chat never becomes ACTIVE again.
type Chat struct {
	ID        uuid.UUID
	Status    ChatStatus
	CreatedAt time.Time
}

func NewChat() Chat {
	return Chat{
		ID:        uuid.New(),
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

func (c Chat) IsClosed() bool {
	return c.Status == StatusClosed
}

// ChatSnapshot pairs a chat with its current participants.
// Used for the operator "active chats" view.
type ChatSnapshot struct {
	Chat         Chat
	Participants []User
}
