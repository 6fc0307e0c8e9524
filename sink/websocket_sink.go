// Package sink carries outbound delivery endpoints. A sink owns the write
// side of one connection; everything else in the system only ever calls
// Consume and never touches the socket directly.
package sink

import (
	"chat-sessions/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EncodeFunc turns a domain event into its wire representation. Injected so
// the sink stays ignorant of the protocol envelope.
type EncodeFunc func(event.DomainEvent) ([]byte, error)

const (
	outboundBuffer = 64
	writeTimeout   = 10 * time.Second
)

// WebSocketSink serializes all writes for one connection through a single
// pump goroutine, so events reach the peer in the order they were consumed
// no matter how many goroutines fan out to it. A full buffer means the peer
// is not draining; the sink closes rather than block the broadcaster.
type WebSocketSink struct {
	log    *slog.Logger
	conn   *websocket.Conn
	encode EncodeFunc
	out    chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewWebSocketSink(log *slog.Logger, conn *websocket.Conn, encode EncodeFunc) *WebSocketSink {
	s := &WebSocketSink{
		log:    log,
		conn:   conn,
		encode: encode,
		out:    make(chan event.DomainEvent, outboundBuffer),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// Consume enqueues the event for the write pump. Never blocks: a closed sink
// or a saturated buffer surfaces as an error to the caller instead.
func (s *WebSocketSink) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return fmt.Errorf("sink closed")
	default:
	}

	select {
	case s.out <- e:
		return nil
	case <-s.done:
		return fmt.Errorf("sink closed")
	default:
		s.log.Warn("outbound buffer full, dropping connection")
		s.Close()
		return fmt.Errorf("outbound buffer full")
	}
}

// Close stops the pump and closes the underlying connection. Safe to call
// more than once and from any goroutine.
func (s *WebSocketSink) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *WebSocketSink) pump() {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.out:
			payload, err := s.encode(e)
			if err != nil {
				s.log.Error("encode event", "error", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("write failed, closing sink", "error", err)
				s.Close()
				return
			}
		}
	}
}
