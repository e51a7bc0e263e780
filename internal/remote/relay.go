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

// Relay accepts Link connections and forwards every valid message line a
// robot sends to all other connected robots.
type Relay struct {
	log *slog.Logger

	mu    sync.Mutex
	peers map[net.Conn]string
}

func NewRelay(log *slog.Logger) *Relay {
	return &Relay{log: logging.Component(log, "relay"), peers: make(map[net.Conn]string)}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (r *Relay) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. ln is closed on return.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	r.log.Info("relay listening", "addr", ln.Addr().String())
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer r.closePeers()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.serve(conn)
		}()
	}
}

// Peers returns the number of connected robots.
func (r *Relay) Peers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

func (r *Relay) serve(conn net.Conn) {
	name := conn.RemoteAddr().String()
	r.mu.Lock()
	r.peers[conn] = name
	r.mu.Unlock()
	r.log.Info("robot connected", "peer", name)
	defer func() {
		r.drop(conn)
		r.log.Info("robot disconnected", "peer", name)
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		m, err := Parse(sc.Text())
		if err != nil {
			r.log.Warn("dropping message", "peer", name, "err", err)
			continue
		}
		r.forward(conn, m)
	}
}

func (r *Relay) forward(from net.Conn, m Message) {
	line := []byte(m.String() + "\n")
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn, name := range r.peers {
		if conn == from {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		if _, err := conn.Write(line); err != nil {
			r.log.Warn("forward failed", "peer", name, "err", err)
			delete(r.peers, conn)
			conn.Close()
		}
	}
	r.log.Debug("message relayed", "kind", m.Kind, "id", m.ID)
}

func (r *Relay) drop(conn net.Conn) {
	r.mu.Lock()
	delete(r.peers, conn)
	r.mu.Unlock()
	conn.Close()
}

func (r *Relay) closePeers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.peers {
		conn.Close()
	}
}
