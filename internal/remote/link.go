package remote

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"matchbot/internal/logging"
)

// ErrNotConnected is returned by Send while the link is down.
var ErrNotConnected = errors.New("remote link not connected")

const inboxSize = 64

// Link is a reconnecting TCP client. Received messages wait in a bounded
// inbox drained by Poll; when the inbox is full new messages are dropped.
type Link struct {
	addr  string
	retry time.Duration
	log   *slog.Logger
	inbox chan Message

	mu   sync.Mutex
	conn net.Conn
}

// NewLink creates a link to addr. Call Run to connect.
func NewLink(addr string, log *slog.Logger) *Link {
	return &Link{
		addr:  addr,
		retry: time.Second,
		log:   logging.Component(log, "remote"),
		inbox: make(chan Message, inboxSize),
	}
}

// Run dials and reads until ctx is done, reconnecting after failures.
func (l *Link) Run(ctx context.Context) error {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", l.addr)
		if err == nil {
			l.log.Info("remote link connected", "addr", l.addr)
			l.serve(ctx, conn)
		} else if ctx.Err() == nil {
			l.log.Warn("remote link dial failed", "addr", l.addr, "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
	}
}

func (l *Link) serve(ctx context.Context, conn net.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		m, err := Parse(sc.Text())
		if err != nil {
			l.log.Warn("ignoring remote message", "err", err)
			continue
		}
		select {
		case l.inbox <- m:
		default:
			l.log.Warn("remote inbox full, message dropped", "message", m.String())
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		l.log.Warn("remote link read failed", "err", err)
	}
}

// Poll returns the oldest pending message without blocking.
func (l *Link) Poll() (Message, bool) {
	select {
	case m := <-l.inbox:
		return m, true
	default:
		return Message{}, false
	}
}

// Send writes one message line.
func (l *Link) Send(m Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrNotConnected
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	_, err := l.conn.Write([]byte(m.String() + "\n"))
	return err
}
