// Package domain contains core concepts of the chat session layer.
// This file defines Message entities and related rules.
// Messages are immutable once stored.
package domain

import (
	"github.com/google/uuid"
	"time"
)

// Message represents an immutable chat entry.
// Lang holds the ISO-639-1 code detected at moderation time, "" if unknown.
type Message struct {
	ID        uuid.UUID // unique identifier
	ChatID    uuid.UUID
	SenderID  string
	Content   string
	Lang      string
	CreatedAt time.Time
}
