// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package stream broadcasts live readings to websocket clients as CBOR
// binary messages, one reading per message.
package stream

import (
	"crypto/subtle"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientQueueLen = 64
)

// HubConfig configures a Hub
type HubConfig struct {
	Logger logrus.FieldLogger

	// Username and Password enable HTTP Basic auth on the upgrade request
	// when both are set
	Username string
	Password string

	// OnDrop is called when a reading is discarded for a slow client
	OnDrop func()
}

// Hub fans readings out to connected websocket clients. A client that
// cannot keep up loses readings rather than slowing the capture.
type Hub struct {
	cfg      HubConfig
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

var _ capture.Consumer = (*Hub)(nil)

// NewHub creates a hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Hub{
		cfg: cfg,
		log: cfg.Logger.WithField("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Sent returns the number of messages queued to clients
func (h *Hub) Sent() uint64 { return h.sent.Load() }

// Dropped returns the number of messages discarded for slow clients
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Consume implements capture.Consumer
func (h *Hub) Consume(s capture.Sample) error {
	return h.Broadcast(fs9922.NewReading(s.Seq, s.Time, s.Frame))
}

// Broadcast encodes r once and queues it for every client
func (h *Hub) Broadcast(r fs9922.Reading) error {
	data, err := fs9922.MarshalReading(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			if h.cfg.OnDrop != nil {
				h.cfg.OnDrop()
			}
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams readings until the client
// goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="dmmstat"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueLen),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	log := h.log.WithField("remote", r.RemoteAddr)
	log.Info("client connected")

	go h.readLoop(c)
	h.writeLoop(c)

	h.unregister(c)
	conn.Close()
	log.Info("client disconnected")
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.cfg.Username == "" || h.cfg.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.cfg.Password)) == 1
	return userOK && passOK
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// readLoop discards client messages and ends the client on error
func (h *Hub) readLoop(c *client) {
	defer c.close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}
