package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xtaci/kcp-go/v5"
)

// Транспорты потока сообщений
const (
	TransportTCP = "tcp"
	TransportKCP = "kcp"
)

// Параметры KCP для игрового трафика
const (
	kcpDataShards   = 10
	kcpParityShards = 3
	kcpMTU          = 1400
)

// Listen открывает слушатель для транспорта tcp или kcp
func Listen(transport, addr string) (net.Listener, error) {
	switch transport {
	case "", TransportTCP:
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return l, nil
	case TransportKCP:
		l, err := kcp.ListenWithOptions(addr, nil, kcpDataShards, kcpParityShards)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return &kcpListener{l}, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт %q", transport)
	}
}

// Dial устанавливает соединение с сервером
func Dial(ctx context.Context, transport, addr string) (net.Conn, error) {
	switch transport {
	case "", TransportTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return conn, nil
	case TransportKCP:
		conn, err := kcp.DialWithOptions(addr, nil, kcpDataShards, kcpParityShards)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		tuneKCP(conn)
		return conn, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт %q", transport)
	}
}

// tuneKCP настраивает сессию: потоковый режим поверх надёжной доставки
func tuneKCP(conn *kcp.UDPSession) {
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	conn.SetWindowSize(512, 512) // Увеличиваем окно для пропускной способности
	conn.SetMtu(kcpMTU)
}

// kcpListener настраивает каждую принятую сессию
type kcpListener struct {
	*kcp.Listener
}

func (l *kcpListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneKCP(conn)
	return conn, nil
}

// deadlineConn выставляет таймауты перед каждой операцией
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
