// Package server exposes the session core over a websocket endpoint. One
// goroutine reads inbound frames per connection; all outbound traffic goes
// through the connection's sink.
package server

import (
	"chat-sessions/contract"
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	apperrors "chat-sessions/errors"
	"chat-sessions/runtime"
	"chat-sessions/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxFrameSize = 64 * 1024

type Server struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	upgrader     websocket.Upgrader
	validate     *validator.Validate
}

func NewServer(log *slog.Logger, orchestrator *runtime.Orchestrator) *Server {
	return &Server{
		log:          log,
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		validate: validator.New(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := domain.ConnectionID(uuid.NewString())
	snk := sink.NewWebSocketSink(s.log, wsConn, Encode)
	s.log.Info("connection established", "conn", conn, "remote", r.RemoteAddr)

	defer func() {
		snk.Close()
		s.orchestrator.OnDisconnect(r.Context(), conn)
	}()

	wsConn.SetReadLimit(maxFrameSize)
	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", "conn", conn, "error", err)
			return
		}
		s.handleFrame(r.Context(), conn, snk, raw)
	}
}

// handleFrame decodes and dispatches one inbound frame. A panic in a handler
// is contained here so one bad frame cannot take the read loop down.
func (s *Server) handleFrame(ctx context.Context, conn domain.ConnectionID, snk contract.EventSink, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic", "conn", conn, "panic", r)
			s.fail(ctx, snk, uuid.Nil, fmt.Errorf("handler panic: %v", r))
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.fail(ctx, snk, uuid.Nil, apperrors.ErrMalformedRequest)
		return
	}

	switch env.Event {
	case EventOpenChat:
		var p OpenChatPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_, _ = s.orchestrator.OnOpenChat(ctx, conn, snk, p.UserID, p.Token)
	case EventJoinChat:
		var p JoinChatPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_, _ = s.orchestrator.OnJoinChat(ctx, conn, snk, uuid.MustParse(p.ChatID), p.UserID)
	case EventSendMessage:
		var p SendMessagePayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_, _ = s.orchestrator.OnSendMessage(ctx, conn, uuid.MustParse(p.ChatID), p.Text)
	case EventCloseChat:
		var p ChatPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_, _ = s.orchestrator.OnCloseChat(ctx, conn, uuid.MustParse(p.ChatID))
	case EventTypingStart:
		var p ChatPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_ = s.orchestrator.OnTypingStart(ctx, conn, uuid.MustParse(p.ChatID))
	case EventTypingStop:
		var p ChatPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_ = s.orchestrator.OnTypingStop(ctx, conn, uuid.MustParse(p.ChatID))
	case EventGetActiveChats:
		_ = s.orchestrator.OnGetActiveChats(ctx, snk)
	case EventSearchMessages:
		var p SearchPayload
		if !s.decode(ctx, snk, env.Payload, &p) {
			return
		}
		_ = s.orchestrator.OnSearchMessages(ctx, snk, uuid.MustParse(p.ChatID), p.Query)
	default:
		s.fail(ctx, snk, uuid.Nil, apperrors.ErrMalformedRequest)
	}
}

// decode unmarshals and validates one payload. The uuid tag on chat ids
// guarantees MustParse in the dispatch switch cannot panic.
func (s *Server) decode(ctx context.Context, snk contract.EventSink, raw json.RawMessage, into any) bool {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, into); err != nil {
			s.fail(ctx, snk, uuid.Nil, apperrors.ErrMalformedRequest)
			return false
		}
	}
	if err := s.validate.Struct(into); err != nil {
		s.fail(ctx, snk, uuid.Nil, fmt.Errorf("%w: %s", apperrors.ErrMalformedRequest, err))
		return false
	}
	return true
}

func (s *Server) fail(ctx context.Context, snk contract.EventSink, chatID uuid.UUID, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		s.log.Error("request failed", "error", err)
	}
	_ = snk.Consume(ctx, event.OperationFailed{
		Chat:    chatID,
		Code:    string(kind),
		Message: apperrors.PublicMessage(err),
	})
}
