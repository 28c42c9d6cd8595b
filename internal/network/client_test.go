package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/protocol"
)

func TestClientSendWithoutConnection(t *testing.T) {
	c := NewClient(DefaultClientConfig("127.0.0.1:1"))
	assert.Equal(t, ClientDisconnected, c.State())
	assert.ErrorIs(t, c.Send(protocol.PingTag, protocol.Ping{}), ErrNotConnected)
	assert.Empty(t, c.Poll())
	c.Leave()
}

func TestClientConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(DefaultClientConfig(addr))
	_, err = c.Connect(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, ClientConnectError, c.State())
	assert.Equal(t, err, c.Err())
	assert.NotErrorIs(t, err, ErrJoinRejected)
}

func TestClientUnexpectedReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := protocol.ReadMessage(conn, 0); err != nil {
			return
		}
		protocol.WriteMessage(conn, protocol.PingTag, protocol.PeerPing{})
	}()

	c := NewClient(DefaultClientConfig(ln.Addr().String()))
	_, err = c.Connect(context.Background(), "alice")
	assert.ErrorIs(t, err, protocol.ErrMalformed)
	assert.Equal(t, ClientConnectError, c.State())
}

func TestClientJoinTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	cfg := DefaultClientConfig(ln.Addr().String())
	cfg.JoinTimeout = 100 * time.Millisecond
	c := NewClient(cfg)
	_, err = c.Connect(context.Background(), "alice")
	require.Error(t, err, "сервер молчит")
	assert.Equal(t, ClientConnectError, c.State())

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(time.Second):
	}
}

func TestClientServerGone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := protocol.ReadMessage(conn, 0); err != nil {
			conn.Close()
			return
		}
		protocol.WriteMessage(conn, protocol.JoinResponseTag, protocol.JoinResponse{Success: true, ID: 3})
		protocol.WriteMessage(conn, protocol.LeaveTag, protocol.Leave{ID: 7})
		conn.Close()
	}()

	c := NewClient(DefaultClientConfig(ln.Addr().String()))
	resp, err := c.Connect(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ID)

	require.Eventually(t, func() bool {
		return c.State() == ClientConnectError
	}, 3*time.Second, 10*time.Millisecond, "разрыв переводит клиента в ошибку")
	assert.Error(t, c.Err())
	assert.Empty(t, c.Poll(), "очередь сбрасывается вместе с соединением")
	assert.ErrorIs(t, c.Send(protocol.PingTag, protocol.Ping{}), ErrNotConnected)
}

func TestClientSkipsMalformedFrame(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	release := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := protocol.ReadMessage(conn, 0); err != nil {
			return
		}
		protocol.WriteMessage(conn, protocol.JoinResponseTag, protocol.JoinResponse{Success: true, ID: 1})
		protocol.WriteFrame(conn, []byte(`{"request": `))
		protocol.WriteMessage(conn, protocol.LeaveTag, protocol.Leave{ID: 4})
		<-release
	}()
	defer close(release)

	c := NewClient(DefaultClientConfig(ln.Addr().String()))
	_, err = c.Connect(context.Background(), "alice")
	require.NoError(t, err)
	defer c.Leave()

	var got []*protocol.Message
	require.Eventually(t, func() bool {
		got = append(got, c.Poll()...)
		return len(got) > 0
	}, 3*time.Second, 10*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.LeaveTag, got[0].Request, "испорченный кадр пропущен")
	assert.Equal(t, ClientJoined, c.State())
}

func TestReason(t *testing.T) {
	rej := &RejectionError{reason: "занято"}
	assert.Equal(t, "занято", Reason(rej))
	assert.Equal(t, "занято", rej.Reason())
	assert.True(t, errors.Is(rej, ErrJoinRejected))
	assert.Equal(t, "сеть", Reason(errors.New("сеть")))
	assert.Equal(t, "", Reason(nil))
}
