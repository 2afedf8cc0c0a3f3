// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func testSample(seq uint64, v float64) capture.Sample {
	f := fs9922.NewFrameBuilder().Value(v).Unit(fs9922.UnitVolt).Power(fs9922.PowerDC).Bargraph(int(v)).MustBuild()
	return capture.Sample{
		Seq:         seq,
		Time:        time.UnixMilli(1_700_000_000_000 + int64(seq)),
		Frame:       f,
		Measurement: fs9922.Decode(f),
	}
}

func TestHubBroadcastsReadings(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx := context.Background()
	a, err := Dial(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer a.Close()
	b, err := Dial(ctx, wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer b.Close()
	waitClients(t, hub, 2)

	require.NoError(t, hub.Consume(testSample(1, 4.5)))
	require.NoError(t, hub.Consume(testSample(2, -3)))

	for _, c := range []*Client{a, b} {
		r, err := c.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), r.Seq)
		assert.Equal(t, 4.5, r.Value)
		assert.Equal(t, "V", r.Unit)
		assert.Equal(t, []string{"DC"}, r.Status)
		require.NotNil(t, r.Bargraph)
		assert.Equal(t, 4, *r.Bargraph)

		f, err := r.Frame()
		require.NoError(t, err)
		assert.Equal(t, testSample(1, 4.5).Frame, f)

		r, err = c.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), r.Seq)
		assert.Equal(t, -3.0, r.Value)
	}
	assert.Equal(t, uint64(4), hub.Sent())
	assert.Zero(t, hub.Dropped())
}

func TestHubBasicAuth(t *testing.T) {
	hub := NewHub(HubConfig{Username: "meter", Password: "secret"})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx := context.Background()
	_, err := Dial(ctx, wsURL(srv), "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	_, err = Dial(ctx, wsURL(srv), "meter", "wrong", false)
	require.Error(t, err)

	c, err := Dial(ctx, wsURL(srv), "meter", "secret", false)
	require.NoError(t, err)
	defer c.Close()
	waitClients(t, hub, 1)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer c.Close()
	waitClients(t, hub, 1)

	require.NoError(t, hub.Close())
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	waitClients(t, hub, 0)

	// new connections are turned away
	late, err := Dial(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer late.Close()
	_, err = late.Next()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestHubDropsForSlowClients(t *testing.T) {
	drops := 0
	hub := NewHub(HubConfig{OnDrop: func() { drops++ }})

	// a registered client nobody drains
	c := &client{send: make(chan []byte, clientQueueLen), done: make(chan struct{})}
	require.True(t, hub.register(c))

	for i := range clientQueueLen + 5 {
		require.NoError(t, hub.Consume(testSample(uint64(i+1), 1)))
	}
	assert.Equal(t, uint64(clientQueueLen), hub.Sent())
	assert.Equal(t, uint64(5), hub.Dropped())
	assert.Equal(t, 5, drops)
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "http://localhost:1/", "", "", false)
	assert.ErrorContains(t, err, "unsupported URL scheme")

	_, err = Dial(context.Background(), "://bad", "", "", false)
	assert.ErrorContains(t, err, "invalid URL")
}

func TestHubRejectsPlainHTTP(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
