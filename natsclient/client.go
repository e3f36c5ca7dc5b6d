// Package natsclient provides a client for managing NATS connections with circuit breaker pattern.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/webpa-gateway/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Client manages NATS connections with circuit breaker pattern
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   Logger

	// NATS connection
	conn *nats.Conn
	subs []*nats.Subscription

	// Circuit breaker
	lastFailure      atomic.Value // stores time.Time
	backoff          atomic.Value // stores time.Duration
	circuitFailures  atomic.Int32 // failures in current circuit round
	circuitThreshold int32        // failures before opening circuit
	maxBackoff       time.Duration

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// Authentication - sensitive fields cleared on close
	username string
	password string // WARNING: Consider using JWT/NKey authentication instead
	token    string // WARNING: Sensitive - cleared on close

	// TLS
	tlsEnabled  bool
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string

	// Client identification
	clientName  string
	compression bool

	// Callbacks
	onDisconnect   func(error)
	onReconnect    func()
	onHealthChange func(bool)

	// Health monitoring
	healthTicker   *time.Ticker
	healthInterval time.Duration
	healthDone     chan struct{} // Signal to stop health monitoring goroutine

	// Synchronization
	mu      sync.RWMutex
	closeMu sync.Mutex  // Ensures Close() is called only once
	closed  atomic.Bool // Track if client is closed
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:    url,
		logger: &defaultLogger{},
		// Sensible defaults
		maxReconnects:    -1, // infinite by default
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		healthInterval:   10 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	c.logger.Debugf("Created NATS client for %s", url)

	return c, nil
}

// Status returns the current connection status
func (m *Client) Status() ConnectionStatus {
	val := m.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// GetConnection returns the current NATS connection
func (m *Client) GetConnection() *nats.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// setStatus updates the connection status
func (m *Client) setStatus(status ConnectionStatus) {
	m.status.Store(status)
}

// IsHealthy returns true if the connection is healthy
func (m *Client) IsHealthy() bool {
	return m.Status() == StatusConnected
}

// recordFailure records a connection failure and manages circuit breaker
func (m *Client) recordFailure() {
	// Track total failures for metrics
	totalFailures := m.failures.Add(1)
	m.lastFailure.Store(time.Now())

	// Track circuit breaker failures separately
	circuitFailures := m.circuitFailures.Add(1)

	m.logger.Debugf("Recorded failure %d (circuit failures: %d)", totalFailures, circuitFailures)

	// Open circuit after threshold failures in this round
	if circuitFailures >= m.circuitThreshold {
		currentStatus := m.Status()

		if currentStatus != StatusCircuitOpen {
			// Try to transition to open state (only one goroutine will succeed)
			if m.status.CompareAndSwap(currentStatus, StatusCircuitOpen) {
				currentBackoff := m.backoff.Load().(time.Duration)
				newBackoff := currentBackoff * 2
				if newBackoff > m.maxBackoff {
					newBackoff = m.maxBackoff
				}
				m.backoff.Store(newBackoff)

				m.logger.Printf(
					"Circuit breaker opened after %d failures, backing off for %v",
					circuitFailures,
					currentBackoff,
				)

				m.circuitFailures.Store(0)

				// Schedule circuit test after backoff
				time.AfterFunc(currentBackoff, m.testCircuit)
			}
		} else {
			// Circuit already open - failures continue, increase backoff further
			currentBackoff := m.backoff.Load().(time.Duration)
			newBackoff := currentBackoff * 2
			if newBackoff > m.maxBackoff {
				newBackoff = m.maxBackoff
			}
			m.backoff.Store(newBackoff)

			m.logger.Printf("Circuit breaker still open, increased backoff to %v", newBackoff)

			m.circuitFailures.Store(0)
		}
	}
}

// resetCircuit resets the circuit breaker state
func (m *Client) resetCircuit() {
	m.failures.Store(0)
	m.circuitFailures.Store(0)
	m.backoff.Store(time.Second)
	m.lastFailure.Store(time.Time{})

	// Don't change status if we're connected
	if m.Status() == StatusCircuitOpen {
		m.setStatus(StatusDisconnected)
	}
}

// testCircuit attempts to close the circuit breaker
func (m *Client) testCircuit() {
	m.logger.Debugf("Testing circuit breaker - attempting to close circuit")

	if m.Status() == StatusCircuitOpen {
		m.logger.Debugf("Circuit breaker test: moving from open to disconnected")
		m.setStatus(StatusDisconnected)
	}
}

// WaitForConnection waits for the connection to be established
func (m *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
			if m.IsHealthy() {
				return nil
			}
		}
	}
}

// buildConnectionOptions builds NATS connection options from client configuration
func (m *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(m.maxReconnects),
		nats.ReconnectWait(m.reconnectWait),
		nats.PingInterval(m.pingInterval),
		nats.Timeout(m.timeout),
		nats.DrainTimeout(m.drainTimeout),
		nats.DisconnectErrHandler(m.handleDisconnect),
		nats.ReconnectHandler(m.handleReconnect),
		nats.ClosedHandler(m.handleClosed),
		nats.ErrorHandler(m.handleError),
	}

	// Add authentication if configured
	if m.username != "" && m.password != "" {
		opts = append(opts, nats.UserInfo(m.username, m.password))
	}
	if m.token != "" {
		opts = append(opts, nats.Token(m.token))
	}

	// Add TLS if configured
	if m.tlsEnabled {
		if m.tlsCertFile != "" && m.tlsKeyFile != "" {
			opts = append(opts, nats.ClientCert(m.tlsCertFile, m.tlsKeyFile))
		}
		if m.tlsCAFile != "" {
			opts = append(opts, nats.RootCAs(m.tlsCAFile))
		}
	}

	// Add client name if configured
	if m.clientName != "" {
		opts = append(opts, nats.Name(m.clientName))
	}

	// Add compression if enabled
	if m.compression {
		opts = append(opts, nats.Compression(true))
	}

	return opts
}

// Connect establishes connection to NATS server
func (m *Client) Connect(ctx context.Context) error {
	// Check circuit breaker first
	if m.Status() == StatusCircuitOpen {
		m.logger.Debugf("Circuit breaker is open, skipping connection attempt")
		return ErrCircuitOpen
	}

	m.setStatus(StatusConnecting)
	m.logger.Printf("Connecting to NATS at %s", m.url)

	opts := m.buildConnectionOptions()

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(m.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			m.recordFailure()

			if m.Status() != StatusCircuitOpen {
				m.setStatus(StatusDisconnected)
			}

			if m.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}

			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		m.recordFailure()
		if m.Status() != StatusCircuitOpen {
			m.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	m.setStatus(StatusConnected)
	m.resetCircuit()

	m.logger.Printf("Successfully connected to NATS at %s", m.url)

	// Start health monitoring if configured
	if m.healthInterval > 0 {
		m.logger.Debugf("Starting health monitoring with interval %v", m.healthInterval)
		m.startHealthMonitoring()
	}

	if m.onHealthChange != nil {
		m.onHealthChange(true)
	}

	return nil
}

// Close closes the NATS connection
func (m *Client) Close(ctx context.Context) error {
	// Ensure Close() is only called once
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return nil // Already closed
	}
	m.closed.Store(true)

	// Stop health monitoring first (before acquiring main mutex to avoid deadlock)
	m.stopHealthMonitoring()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	// Unsubscribe all with error tracking
	for _, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
			m.logger.Errorf("Failed to unsubscribe: %v", err)
		}
	}
	m.subs = nil

	// Close connection with drain timeout from context or default
	var drainErr error
	if m.conn != nil {
		drainTimeout := m.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		go func() {
			drainDone <- m.conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = errors.Wrap(err, "Client", "Close", "drain connection")
				m.logger.Errorf("Drain error: %v", err)
			}
		case <-time.After(drainTimeout):
			drainErr = errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout),
				"Client",
				"Close",
				"drain timeout",
			)
			m.logger.Errorf("Drain timeout after %v, force closing", drainTimeout)
		case <-ctx.Done():
			drainErr = errors.Wrap(ctx.Err(), "Client", "Close", "context cancelled during drain")
			m.logger.Errorf("Context cancelled during drain, force closing")
		}

		if drainErr != nil {
			errs = append(errs, drainErr)
		}

		m.conn.Close()
		m.conn = nil
	}

	// Clear sensitive credentials from memory
	m.username = ""
	m.password = ""
	m.token = ""

	m.setStatus(StatusDisconnected)

	if len(errs) > 0 {
		errMsg := "cleanup errors:"
		for i, err := range errs {
			errMsg += fmt.Sprintf("\n  [%d] %v", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

// Subscribe subscribes to a NATS subject with context propagation.
// Each message handler receives a context derived from the parent context
// with a 30-second timeout for message processing.
func (m *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || !m.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		// Create per-message context with timeout
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		handler(msgCtx, msg.Data)
	})
	if err != nil {
		return err
	}

	m.subs = append(m.subs, sub)
	return nil
}

// Publish publishes a message to a NATS subject
func (m *Client) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	return conn.Publish(subject, data)
}

// Event handlers for NATS connection
func (m *Client) handleDisconnect(_ *nats.Conn, err error) {
	m.setStatus(StatusReconnecting)

	m.mu.RLock()
	onDisconnect := m.onDisconnect
	onHealthChange := m.onHealthChange
	m.mu.RUnlock()

	if onDisconnect != nil {
		go onDisconnect(err)
	}
	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (m *Client) handleReconnect(_ *nats.Conn) {
	m.setStatus(StatusConnected)
	m.resetCircuit()

	m.mu.RLock()
	onReconnect := m.onReconnect
	onHealthChange := m.onHealthChange
	m.mu.RUnlock()

	if onReconnect != nil {
		go onReconnect()
	}
	if onHealthChange != nil {
		go onHealthChange(true)
	}
}

func (m *Client) handleClosed(_ *nats.Conn) {
	m.setStatus(StatusDisconnected)

	m.mu.RLock()
	onHealthChange := m.onHealthChange
	m.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (m *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	// Don't record failure here as it may be called for non-connection errors
	m.logger.Errorf("NATS error: %v", err)
}

// startHealthMonitoring starts periodic health checks
func (m *Client) startHealthMonitoring() {
	// Stop any existing health monitoring
	m.stopHealthMonitoring()

	m.mu.Lock()
	m.healthTicker = time.NewTicker(m.healthInterval)
	m.healthDone = make(chan struct{})
	ticker := m.healthTicker
	done := m.healthDone
	m.mu.Unlock()

	go func() {
		defer ticker.Stop()
		lastHealthy := m.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.mu.RLock()
				conn := m.conn
				m.mu.RUnlock()

				if conn == nil {
					continue
				}

				healthy := conn.IsConnected()
				if _, err := conn.RTT(); err != nil {
					healthy = false
				}

				if healthy && m.Status() != StatusConnected {
					m.setStatus(StatusConnected)
				} else if !healthy && m.Status() == StatusConnected {
					m.setStatus(StatusReconnecting)
				}

				if healthy != lastHealthy && m.onHealthChange != nil {
					m.onHealthChange(healthy)
				}

				lastHealthy = healthy
			}
		}
	}()
}

// stopHealthMonitoring stops health monitoring goroutine
func (m *Client) stopHealthMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthTicker != nil {
		m.healthTicker.Stop()
		m.healthTicker = nil
	}
	if m.healthDone != nil {
		close(m.healthDone)
		m.healthDone = nil
	}
}
