// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "chordscope/internal/log"
)

// LoggingTransport implements the Transport interface by logging each
// message at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data as JSON. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("LoggingTransport: %T: %+v (marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("LoggingTransport: %s", jsonData)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
