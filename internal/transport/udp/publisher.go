// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	applog "chordscope/internal/log"
	"chordscope/internal/pipeline"
)

// UDPPublisher periodically fetches the latest snapshot, packs it into the
// binary packet format and sends it with a UDPSender. Each snapshot is
// sent at most once. It runs in a separate goroutine managed by Start and
// Stop.
type UDPPublisher struct {
	sender   *UDPSender
	provider pipeline.SnapshotProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	lastSnapSeq uint64

	// Reused on every send.
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 33ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider pipeline.SnapshotProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: snapshot provider cannot be nil")
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Target: %s)", interval, sender.Target())

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Calling Start while
// running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started")
		for {
			select {
			case <-ticker.C:
				p.publishLatest()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// publishLatest sends the current snapshot if it has not been sent yet.
// It reports whether a packet went out.
func (p *UDPPublisher) publishLatest() bool {
	snap := p.provider.Latest()
	if snap == nil || snap.Seq == p.lastSnapSeq {
		return false
	}
	p.lastSnapSeq = snap.Seq
	p.sequenceNum++

	var err error
	p.f32Buffer, err = encodePacket(p.packetBuffer, p.f32Buffer, p.sequenceNum, snap)
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing snapshot %d: %v", snap.Seq, err)
		return false
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err != nil {
		return false // Logged by the sender.
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	return true
}

// Close stops the publisher and closes its sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
