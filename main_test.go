// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"testing"

	"chordscope/internal/config"
	"chordscope/internal/fault"
	"chordscope/internal/pipeline"
	"chordscope/internal/transport"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad window", fault.ErrConfiguration), exitConfig},
		{fmt.Errorf("%w: no device", fault.ErrCaptureUnavailable), exitUnavailable},
		{errors.New("other"), exitError},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestOpenTransports(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.WebSocketEnabled = true
	cfg.Transport.WebSocketAddress = "127.0.0.1:0"
	cfg.Transport.UDPEnabled = true
	cfg.Transport.UDPTargetAddress = "127.0.0.1:9"

	transports, publisher, err := openTransports(cfg, &pipeline.Slot{})
	if err != nil {
		t.Fatalf("openTransports: %v", err)
	}
	defer publisher.Close()
	defer closeAll(transports)

	if len(transports) != 2 {
		t.Fatalf("got %d transports, want logging and websocket", len(transports))
	}
	if _, ok := transports[1].(*transport.WebSocketTransport); !ok {
		t.Errorf("second transport is %T", transports[1])
	}
	if publisher == nil {
		t.Error("UDP publisher not created")
	}
}

func TestOpenTransportsBadAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.UDPEnabled = true
	cfg.Transport.UDPTargetAddress = "no-port"

	if _, _, err := openTransports(cfg, &pipeline.Slot{}); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("openTransports = %v, want ErrConfiguration", err)
	}
}
