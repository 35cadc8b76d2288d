// SPDX-License-Identifier: MIT
package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	defer wst.Close()
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	a := dialTest(t, srv)
	b := dialTest(t, srv)
	waitFor(t, func() bool { return wst.ClientCount() == 2 })

	type msg struct {
		Label string `json:"label"`
	}
	if err := wst.Send(msg{Label: "A minor"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got msg
		if err := c.ReadJSON(&got); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if got.Label != "A minor" {
			t.Errorf("Label = %q", got.Label)
		}
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	defer wst.Close()
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	c := dialTest(t, srv)
	waitFor(t, func() bool { return wst.ClientCount() == 1 })
	c.Close()
	waitFor(t, func() bool { return wst.ClientCount() == 0 })
}

func TestWebSocketStartAndClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	if err := wst.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if strings.HasSuffix(wst.Addr(), ":0") {
		t.Errorf("Addr = %q, want the bound port", wst.Addr())
	}

	url := "ws://" + wst.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send("late"); err != ErrTransportClosed {
		t.Errorf("Send after Close = %v, want ErrTransportClosed", err)
	}
}

func TestWebSocketStartBadAddress(t *testing.T) {
	wst := NewWebSocketTransport("256.0.0.1:bad")
	defer wst.Close()
	if err := wst.Start(); err == nil {
		t.Error("expected listen error")
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(map[string]int{"seq": 1}); err != nil {
		t.Errorf("Send: %v", err)
	}
	if err := lt.Send(func() {}); err != nil {
		t.Errorf("Send of unmarshalable value: %v", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
