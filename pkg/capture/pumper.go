package capture

import (
	"context"
	"sync"
	"time"
)

// Pumper calls PumpEvents on a fixed period so notifications are delivered
// while no capture flow is pumping.
type Pumper struct {
	m      *Manager
	period time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPumper creates a pumper for m. A zero period uses capture.pump_period.
func NewPumper(m *Manager, period time.Duration) *Pumper {
	if period <= 0 {
		period = m.cfg.Capture.PumpPeriod
	}
	return &Pumper{m: m, period: period}
}

// Run pumps until ctx is cancelled.
func (p *Pumper) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.m.PumpEvents()
		}
	}
}

// Start runs the pumper in a goroutine. Calling Start twice is a no-op.
func (p *Pumper) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_ = p.Run(ctx)
	}()
}

// Stop cancels the pumper and waits for it to exit.
func (p *Pumper) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
