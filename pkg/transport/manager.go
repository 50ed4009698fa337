// Package transport owns the kiosk's single persistent WebSocket connection
// to the local face recognition service.
//
// A Manager reconnects at a fixed interval up to an attempt budget, drops
// inbound frames that are not valid JSON, and fans valid frames out to
// registered handlers synchronously and in registration order.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives one inbound JSON frame.
type Handler func(msg json.RawMessage)

// Subscription identifies a registered Handler. Registering the same
// function twice yields two subscriptions.
type Subscription struct {
	fn Handler
}

// Manager manages the WebSocket connection to the recognition service.
type Manager struct {
	config *Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	gen            uint64 // bumped by Disconnect to orphan in-flight dials and reads
	attempts       int
	reconnect      bool
	reconnectTimer *time.Timer

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   []*Subscription
}

// New creates a Manager for url. It does not connect; call Connect.
func New(url string, opts ...Option) *Manager {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		config:    cfg,
		logger:    cfg.Logger.With("component", "transport.manager"),
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		status:    StatusClosed,
		reconnect: cfg.Reconnect,
	}
}

// URL returns the service endpoint.
func (m *Manager) URL() string {
	return m.config.URL
}

// Connect starts connecting in the background. It is a no-op while a
// connection is open or being established. A manual Connect restores the
// full reconnect budget.
func (m *Manager) Connect() {
	m.connect(true)
}

func (m *Manager) connect(manual bool) {
	m.mu.Lock()
	if m.status == StatusOpen || m.status == StatusConnecting {
		m.mu.Unlock()
		return
	}
	if !manual && !m.reconnect {
		// a reconnect timer that fired before Teardown
		m.mu.Unlock()
		return
	}
	if manual {
		m.attempts = 0
	}
	m.status = StatusConnecting
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
}

// dial establishes the WebSocket connection for generation gen.
func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.HandshakeTimeout)
	defer cancel()

	conn, resp, err := m.dialer.DialContext(ctx, m.config.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect ran while dialing.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.status = StatusError
		m.mu.Unlock()

		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("websocket dial failed: %w", err)
		}
		m.logger.Warn("connection error", "url", m.config.URL, "error", err)
		if m.config.OnError != nil {
			m.config.OnError(err)
		}
		m.scheduleReconnect()
		return
	}

	m.conn = conn
	m.status = StatusOpen
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Info("websocket connected", "url", m.config.URL)

	done := make(chan struct{})
	go m.readLoop(conn, gen, done)
	if m.config.PingInterval > 0 {
		go m.keepaliveLoop(conn, done)
	}

	if m.config.OnOpen != nil {
		m.config.OnOpen()
	}
}

// readLoop reads frames until the connection fails.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64, done chan struct{}) {
	defer close(done)

	if m.config.PingInterval > 0 {
		timeout := 3 * m.config.PingInterval
		conn.SetReadDeadline(time.Now().Add(timeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, gen, err)
			return
		}
		if m.config.PingInterval > 0 {
			conn.SetReadDeadline(time.Now().Add(3 * m.config.PingInterval))
		}

		if !json.Valid(data) {
			m.logger.Warn("dropping malformed frame", "bytes", len(data))
			continue
		}
		m.dispatch(json.RawMessage(data))
	}
}

// keepaliveLoop sends periodic pings to maintain the connection.
func (m *Manager) keepaliveLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(m.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				m.logger.Warn("keepalive ping failed", "error", err)
				// Closing unblocks readLoop, which runs the close path.
				conn.Close()
				return
			}
		}
	}
}

// handleClose handles connection loss and triggers reconnection.
func (m *Manager) handleClose(conn *websocket.Conn, gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.status = StatusClosed
	m.mu.Unlock()

	conn.Close()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Warn("websocket closed unexpectedly", "error", err)
	} else {
		m.logger.Info("websocket closed", "reason", err)
	}

	if m.config.OnClose != nil {
		m.config.OnClose()
	}
	m.scheduleReconnect()
}

// scheduleReconnect arms one reconnect timer if the budget allows.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.reconnect || m.reconnectTimer != nil {
		return
	}
	if m.attempts >= m.config.MaxReconnectAttempts {
		m.logger.Warn("max reconnect attempts reached", "attempts", m.attempts)
		return
	}

	m.attempts++
	m.logger.Info("scheduling reconnect",
		"attempt", m.attempts,
		"max", m.config.MaxReconnectAttempts,
		"delay", m.config.ReconnectInterval)

	m.reconnectTimer = time.AfterFunc(m.config.ReconnectInterval, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		m.mu.Unlock()
		m.connect(false)
	})
}

// Send serializes v to JSON and writes it if the connection is open.
// Failures are logged and reported as false.
func (m *Manager) Send(v any) bool {
	if err := m.Write(v); err != nil {
		m.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// Write is Send with the error returned to the caller.
func (m *Manager) Write(v any) error {
	m.mu.Lock()
	conn := m.conn
	open := m.status == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// OnMessage registers fn for every valid inbound frame.
func (m *Manager) OnMessage(fn Handler) *Subscription {
	sub := &Subscription{fn: fn}

	m.handlersMu.Lock()
	m.handlers = append(m.handlers, sub)
	m.handlersMu.Unlock()

	return sub
}

// OffMessage removes sub. Unknown or already removed subscriptions are ignored.
func (m *Manager) OffMessage(sub *Subscription) {
	if sub == nil {
		return
	}

	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	for i, s := range m.handlers {
		if s == sub {
			m.handlers = append(m.handlers[:i:i], m.handlers[i+1:]...)
			return
		}
	}
}

// dispatch invokes a snapshot of the handlers in registration order.
func (m *Manager) dispatch(msg json.RawMessage) {
	m.handlersMu.RLock()
	handlers := make([]*Subscription, len(m.handlers))
	copy(handlers, m.handlers)
	m.handlersMu.RUnlock()

	for _, sub := range handlers {
		sub.fn(msg)
	}
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsOpen reports whether the connection is open.
func (m *Manager) IsOpen() bool {
	return m.Status() == StatusOpen
}

// WaitForOpen blocks until the connection is open, ctx is done, or timeout
// elapses. It returns immediately when already open.
func (m *Manager) WaitForOpen(ctx context.Context, timeout time.Duration) error {
	if m.IsOpen() {
		return nil
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrOpenTimeout
		case <-ticker.C:
			if m.IsOpen() {
				return nil
			}
		}
	}
}

// Disconnect closes the connection and fires OnClose once. It is safe to
// call when already disconnected. A reconnect that is already scheduled is
// left alone, and handlers stay registered.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	if conn == nil && m.status != StatusConnecting {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.conn = nil
	m.status = StatusClosing
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		m.writeMu.Unlock()
		conn.Close()
	}

	m.mu.Lock()
	m.status = StatusClosed
	m.mu.Unlock()

	m.logger.Info("websocket disconnected")
	if conn != nil && m.config.OnClose != nil {
		m.config.OnClose()
	}
}

// Teardown disables reconnection, cancels any scheduled reconnect, and
// disconnects.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.reconnect = false
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	m.Disconnect()
}
