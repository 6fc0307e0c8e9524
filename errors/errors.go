package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrChatNotFound      = fmt.Errorf("chat not found")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrChatClosed        = fmt.Errorf("chat is closed")
	ErrUnknownConnection = fmt.Errorf("connection is not registered")
	ErrMalformedRequest  = fmt.Errorf("malformed request")
	ErrInvalidToken      = fmt.Errorf("invalid resume token")
)

// Kind is the coarse taxonomy reported back over the wire.
// Expected failures (NotFound, InvalidState) go to the originating
// connection as-is; everything else is logged and collapsed to Internal.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindInvalidState Kind = "INVALID_STATE"
	KindInternal     Kind = "INTERNAL"
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrChatNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrUnknownConnection):
		return KindNotFound
	case errors.Is(err, ErrChatClosed),
		errors.Is(err, ErrMalformedRequest),
		errors.Is(err, ErrInvalidToken):
		return KindInvalidState
	default:
		return KindInternal
	}
}

// PublicMessage returns what the originating connection may see.
// Internal errors never leak their detail.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
