package remote

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Message
	}{
		{"add-zone#stock_left", Message{Kind: AddZone, ID: "stock_left"}},
		{"delete-zone#wall\n", Message{Kind: DeleteZone, ID: "wall"}},
		{"action-data#12#open#now", Message{Kind: ActionData, ID: "12", Payload: "open#now"}},
		{"action-data#12", Message{Kind: ActionData, ID: "12"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
	for _, bad := range []string{"", "add-zone", "add-zone#", "jump#1", "add-zone#a#b"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformedMessage, bad)
	}
	assert.Equal(t, "action-data#3#x", Message{Kind: ActionData, ID: "3", Payload: "x"}.String())
	assert.Equal(t, "add-zone#z", Message{Kind: AddZone, ID: "z"}.String())
}

func TestStringKeepsOneLine(t *testing.T) {
	m := Message{Kind: ActionData, ID: "7#b\n", Payload: "grab\r\nthen\nlift#high"}
	line := m.String()
	assert.NotContains(t, line, "\n")
	assert.NotContains(t, line, "\r")
	got, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: ActionData, ID: "7_b ", Payload: "grab then lift#high"}, got)

	got, err = Parse(Message{Kind: AddZone, ID: "a\nb"}.String())
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: AddZone, ID: "a b"}, got)
}

func TestLinkRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	link := NewLink(ln.Addr().String(), nil)
	assert.ErrorIs(t, link.Send(Message{Kind: AddZone, ID: "a"}), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage\ndelete-zone#wall\n"))
	require.NoError(t, err)
	var msg Message
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = link.Poll()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Message{Kind: DeleteZone, ID: "wall"}, msg)

	require.Eventually(t, func() bool {
		return link.Send(Message{Kind: AddZone, ID: "stock"}) == nil
	}, 2*time.Second, 5*time.Millisecond)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "add-zone#stock\n", line)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRelayForwardsBetweenLinks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	relay := NewRelay(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- relay.Serve(ctx, ln) }()

	a := NewLink(ln.Addr().String(), nil)
	b := NewLink(ln.Addr().String(), nil)
	go a.Run(ctx)
	go b.Run(ctx)
	require.Eventually(t, func() bool { return relay.Peers() == 2 }, 2*time.Second, 5*time.Millisecond)

	// A raw peer sending garbage is ignored, not forwarded.
	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Write([]byte("jump#1\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return a.Send(Message{Kind: AddZone, ID: "stock_left"}) == nil
	}, 2*time.Second, 5*time.Millisecond)

	var got Message
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = b.Poll()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Message{Kind: AddZone, ID: "stock_left"}, got)

	_, ok := a.Poll()
	assert.False(t, ok, "sender must not receive its own message")
	_, ok = b.Poll()
	assert.False(t, ok, "garbage must not be relayed")

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
