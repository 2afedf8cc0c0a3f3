// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stream

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// Client receives readings from a Hub
type Client struct {
	conn   *websocket.Conn
	closed bool // set once a read has failed
}

// Dial opens a websocket connection with optional HTTP Basic auth
func Dial(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &Client{conn: conn}, nil
}

// Next blocks until the next reading arrives. Non-binary messages are
// skipped. After a normal close it returns ErrConnectionClosed.
func (c *Client) Next() (fs9922.Reading, error) {
	if c.closed {
		return fs9922.Reading{}, ErrConnectionClosed
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fs9922.Reading{}, ErrConnectionClosed
			}
			return fs9922.Reading{}, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return fs9922.UnmarshalReading(data)
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.conn.Close()
}
