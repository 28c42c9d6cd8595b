package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/protocol"
)

var (
	// ErrJoinRejected сервер отказал во входе; причина в RejectionError
	ErrJoinRejected     = errors.New("вход отклонён сервером")
	ErrNotConnected     = errors.New("нет соединения с сервером")
	ErrAlreadyConnected = errors.New("соединение уже установлено")
)

// RejectionError отказ сервера с текстом причины
type RejectionError struct {
	reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrJoinRejected, e.reason)
}

func (e *RejectionError) Unwrap() error { return ErrJoinRejected }

// Reason текст причины отказа
func (e *RejectionError) Reason() string { return e.reason }

// Reason возвращает причину отказа из err или текст ошибки
func Reason(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ClientState сетевое состояние клиента
type ClientState int

const (
	ClientDisconnected ClientState = iota
	ClientConnecting
	ClientJoined
	ClientConnectError
)

func (s ClientState) String() string {
	switch s {
	case ClientDisconnected:
		return "disconnected"
	case ClientConnecting:
		return "connecting"
	case ClientJoined:
		return "joined"
	case ClientConnectError:
		return "connect_error"
	default:
		return fmt.Sprintf("client_state(%d)", int(s))
	}
}

// ClientConfig параметры клиента
type ClientConfig struct {
	Transport      string
	Addr           string
	DialTimeout    time.Duration
	JoinTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int
}

// DefaultClientConfig конфигурация для сервера addr по TCP
func DefaultClientConfig(addr string) ClientConfig {
	return ClientConfig{
		Transport:      TransportTCP,
		Addr:           addr,
		DialTimeout:    5 * time.Second,
		JoinTimeout:    20 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: protocol.DefaultMaxMessageSize,
	}
}

// Client соединение игрока с сервером. Фоновая горутина читает сообщения
// в очередь, которую игровой цикл забирает через Poll.
type Client struct {
	cfg    ClientConfig
	logger *logging.Logger

	mu    sync.Mutex
	state ClientState
	err   error
	conn  net.Conn
	queue []*protocol.Message
	done  chan struct{}

	writeMu sync.Mutex
}

// NewClient создаёт клиента без соединения
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = protocol.DefaultMaxMessageSize
	}
	return &Client{cfg: cfg, logger: logging.GetNetworkLogger()}
}

// Connect подключается и входит под именем name. При отказе возвращается
// ответ сервера и *RejectionError, состояние становится ClientConnectError.
func (c *Client) Connect(ctx context.Context, name string) (*protocol.JoinResponse, error) {
	c.mu.Lock()
	if c.state == ClientJoined || c.state == ClientConnecting {
		c.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	c.state = ClientConnecting
	c.err = nil
	c.queue = nil
	c.mu.Unlock()

	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}
	nc, err := Dial(dialCtx, c.cfg.Transport, c.cfg.Addr)
	if err != nil {
		return nil, c.fail(err)
	}
	conn := &deadlineConn{Conn: nc, writeTimeout: c.cfg.WriteTimeout}

	if err := protocol.WriteMessage(conn, protocol.JoinRequestTag, protocol.JoinRequest{Name: name}); err != nil {
		nc.Close()
		return nil, c.fail(err)
	}

	deadline := time.Time{}
	if c.cfg.JoinTimeout > 0 {
		deadline = time.Now().Add(c.cfg.JoinTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	nc.SetReadDeadline(deadline)
	msg, err := protocol.ReadMessage(nc, c.cfg.MaxMessageSize)
	if err != nil {
		nc.Close()
		return nil, c.fail(fmt.Errorf("ожидание ответа на вход: %w", err))
	}
	nc.SetReadDeadline(time.Time{})

	if msg.Request != protocol.JoinResponseTag {
		nc.Close()
		return nil, c.fail(fmt.Errorf("%w: ожидался %s, получен %s", protocol.ErrMalformed, protocol.JoinResponseTag, msg.Request))
	}
	var resp protocol.JoinResponse
	if err := msg.Decode(&resp); err != nil {
		nc.Close()
		return nil, c.fail(err)
	}
	if !resp.Success {
		nc.Close()
		return &resp, c.fail(&RejectionError{reason: resp.Reason})
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.state = ClientJoined
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)

	c.logger.Info("🔗 Подключено к %s как %s (id=%d)", c.cfg.Addr, name, resp.ID)
	return &resp, nil
}

// fail переводит клиента в ClientConnectError и сбрасывает сетевое состояние
func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.state = ClientConnectError
	c.err = err
	c.conn = nil
	c.queue = nil
	c.mu.Unlock()

	c.logger.Warn("⚠️ Ошибка соединения с %s: %v", c.cfg.Addr, err)
	return err
}

// readLoop складывает входящие сообщения в очередь до разрыва соединения
func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	for {
		body, err := protocol.ReadFrame(conn, c.cfg.MaxMessageSize)
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.fail(fmt.Errorf("соединение потеряно: %w", err))
			}
			return
		}
		msg, err := protocol.Unmarshal(body)
		if err != nil {
			c.logger.LogProtocolError(c.cfg.Addr, err, body)
			continue
		}
		c.logger.LogMessage(c.cfg.Addr, "IN", msg.Request, body)

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		c.queue = append(c.queue, msg)
		c.mu.Unlock()
	}
}

// Poll забирает накопленные сообщения в порядке получения
func (c *Client) Poll() []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

// Send отправляет сообщение серверу. Ошибка записи обрывает соединение.
func (c *Client) Send(tag string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	joined := c.state == ClientJoined
	c.mu.Unlock()
	if !joined || conn == nil {
		return ErrNotConnected
	}

	body, err := protocol.Encode(tag, payload)
	if err != nil {
		return err
	}
	c.logger.LogMessage(c.cfg.Addr, "OUT", tag, body)

	c.writeMu.Lock()
	err = protocol.WriteFrame(conn, body)
	c.writeMu.Unlock()
	if err != nil {
		conn.Close()
		return c.fail(err)
	}
	return nil
}

// Leave сообщает серверу о выходе и закрывает соединение
func (c *Client) Leave() {
	c.mu.Lock()
	conn := c.conn
	joined := c.state == ClientJoined
	done := c.done
	c.conn = nil
	c.queue = nil
	c.state = ClientDisconnected
	c.err = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if joined {
		c.writeMu.Lock()
		if err := protocol.WriteMessage(conn, protocol.LeaveRequestTag, nil); err != nil {
			c.logger.Debug("leave_request не отправлен: %v", err)
		}
		c.writeMu.Unlock()
	}
	conn.Close()
	if done != nil {
		<-done
	}
	c.logger.Info("🚪 Отключено от %s", c.cfg.Addr)
}

// State текущее сетевое состояние
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err последняя ошибка соединения
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
