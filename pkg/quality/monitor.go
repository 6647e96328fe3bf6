// Package quality is the client-local reconnection and link quality
// monitor. It observes transport signals and classifies round-trip
// latency; retry backoff itself belongs to the underlying transport.
package quality

import (
	"sync"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

type Quality string

const (
	QualityGood Quality = "good"
	QualityFair Quality = "fair"
	QualityPoor Quality = "poor"
)

const (
	// DefaultProbeInterval is how often a liveness probe goes out.
	DefaultProbeInterval = 30 * time.Second

	fairThreshold = 500 * time.Millisecond
	poorThreshold = 1000 * time.Millisecond
)

// Classify buckets a round-trip latency.
func Classify(latency time.Duration) Quality {
	switch {
	case latency > poorThreshold:
		return QualityPoor
	case latency >= fairThreshold:
		return QualityFair
	default:
		return QualityGood
	}
}

type probe struct {
	timestamp int64
	started   time.Time
}

type Config struct {
	// Interval between probes; DefaultProbeInterval when zero.
	Interval time.Duration

	// SendPing pushes a timestamped ping onto the transport.
	SendPing func(timestamp int64)

	// Now is injectable for tests; time.Now when nil.
	Now func() time.Time
}

type Monitor struct {
	mu sync.Mutex

	state          State
	quality        Quality
	attempts       int
	lastDisconnect time.Time
	failed         bool
	pending        *probe

	interval time.Duration
	sendPing func(int64)
	now      func() time.Time

	done chan struct{}
	once sync.Once
}

func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		state:    StateDisconnected,
		quality:  QualityGood,
		interval: cfg.Interval,
		sendPing: cfg.SendPing,
		now:      cfg.Now,
		done:     make(chan struct{}),
	}
}

// Start runs the periodic probe loop until Stop.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CheckQuality()
			case <-m.done:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.done) })
}

// CheckQuality sends one timestamped probe. Probes only go out while
// connected; a newer probe supersedes an unanswered one.
func (m *Monitor) CheckQuality() {
	m.mu.Lock()
	if m.state != StateConnected || m.sendPing == nil {
		m.mu.Unlock()
		return
	}
	started := m.now()
	p := &probe{timestamp: started.UnixMilli(), started: started}
	m.pending = p
	send := m.sendPing
	m.mu.Unlock()

	send(p.timestamp)
}

// HandlePong resolves the matching in-flight probe and reclassifies the
// link. Pongs for stale or abandoned probes are ignored.
func (m *Monitor) HandlePong(timestamp int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil || m.pending.timestamp != timestamp {
		return
	}
	latency := m.now().Sub(m.pending.started)
	m.pending = nil
	m.quality = Classify(latency)
}

// HandleConnect moves to connected and resets the attempt counter.
func (m *Monitor) HandleConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateConnected
	m.attempts = 0
	m.failed = false
}

// HandleDisconnect records the drop and abandons any in-flight probe
// without error.
func (m *Monitor) HandleDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateDisconnected
	m.lastDisconnect = m.now()
	m.pending = nil
}

// HandleReconnectAttempt surfaces the transport's own retry counter.
func (m *Monitor) HandleReconnectAttempt(attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateConnecting
	m.attempts = attempt
}

// HandleReconnectFailed records that the transport gave up.
func (m *Monitor) HandleReconnectFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateDisconnected
	m.failed = true
}

// Reconnect runs connect only while not already connected and reports
// whether it ran.
func (m *Monitor) Reconnect(connect func()) bool {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return false
	}
	m.state = StateConnecting
	m.mu.Unlock()

	connect()
	return true
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Quality() Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quality
}

func (m *Monitor) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Monitor) LastDisconnect() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDisconnect
}

func (m *Monitor) Failed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}
