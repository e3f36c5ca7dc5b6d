// Package natsclient provides a NATS client with circuit breaker protection,
// automatic reconnection, and a minimal Key-Value wrapper for the gateway's
// real-mode transport and JetStream transaction snapshots.
//
// The natsclient package wraps the standard NATS Go client with a circuit
// breaker for failure protection, exponential backoff on reconnect, and
// context propagation through every blocking operation.
//
// # Core Features
//
// Circuit Breaker Pattern: Prevents cascading failures by failing fast after
// a threshold of consecutive failures (default: 5). The circuit opens to
// prevent further attempts, then tests the connection after an exponentially
// increasing backoff.
//
// Connection Lifecycle Management: Handles connection states automatically
// through the lifecycle: Disconnected -> Connecting -> Connected ->
// Reconnecting -> Connected, with configurable callbacks for state changes.
//
// KVStore Abstraction: A thin wrapper over a JetStream KeyValue bucket
// providing Get/Put/Delete with per-operation timeouts, used by txn's
// snapshot store.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "subject.name", []byte("message data"))
//
//	err = client.Subscribe(ctx, "subject.*", func(msgCtx context.Context, data []byte) {
//	    // Handle message with context (30s timeout per message)
//	})
//
// # Advanced Configuration
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithMaxReconnects(-1), // Infinite reconnects
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithCircuitBreakerThreshold(10),
//	    natsclient.WithDisconnectCallback(func(err error) {
//	        log.Printf("Disconnected: %v", err)
//	    }),
//	)
//
// # Key-Value Store
//
//	kvStore := client.NewKVStore(bucket)
//	rev, err := kvStore.Put(ctx, "service.config", payload)
//	entry, err := kvStore.Get(ctx, "service.config")
//
// # Connection Status and Health
//
//	status := client.Status()
//	switch status {
//	case natsclient.StatusConnected:
//	case natsclient.StatusReconnecting:
//	case natsclient.StatusCircuitOpen:
//	case natsclient.StatusDisconnected:
//	}
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	err := client.WaitForConnection(ctx)
//
// # Error Handling
//
//	err := client.Connect(ctx)
//	if errors.Is(err, natsclient.ErrCircuitOpen) {
//	    // Back off and retry later
//	}
//	err = client.Publish(ctx, "subject", data)
//	if errors.Is(err, natsclient.ErrNotConnected) {
//	    // Trigger reconnection
//	}
//
// KV-specific error handling:
//
//	if natsclient.IsKVNotFoundError(err) {
//	    // Key doesn't exist
//	}
//
// # Connection Options
//
//	WithMaxReconnects(n int)              // Maximum reconnection attempts (-1 = infinite)
//	WithReconnectWait(d time.Duration)    // Wait between reconnection attempts
//	WithTimeout(d time.Duration)          // Connection timeout
//	WithDrainTimeout(d time.Duration)     // Timeout for graceful shutdown
//	WithPingInterval(d time.Duration)     // Health check interval
//	WithHealthInterval(d time.Duration)   // Health monitoring interval
//	WithCircuitBreakerThreshold(n int)    // Failures before circuit opens
//	WithMaxBackoff(d time.Duration)       // Maximum backoff duration
//	WithLogger(logger Logger)             // Custom logger for debug output
//	WithName(name string)                 // Client identification
//
// # Authentication and Security
//
//	client, err := natsclient.NewClient(url, natsclient.WithCredentials("username", "password"))
//	client, err := natsclient.NewClient(url, natsclient.WithToken("auth-token"))
//	client, err := natsclient.NewClient(url, natsclient.WithTLS(certFile, keyFile, caFile))
//
// Note: Credentials are cleared from memory when the client is closed.
//
// # Thread Safety
//
// The Client type is thread-safe and can be used concurrently from multiple
// goroutines:
//   - All public methods are safe for concurrent use
//   - Connection state is managed with atomic operations and mutexes
//   - Close() can only be called once (subsequent calls are no-ops)
package natsclient
