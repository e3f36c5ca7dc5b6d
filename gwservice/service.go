// Package gwservice wires together the parambus adapter, parameter cache,
// authorization hook, protocol translator, event pipeline, transaction
// engine, and uplink session into one process-wide Service, following the
// status/Info lifecycle this codebase's other long-running processes use
// (compare service.BaseService's atomic-status/done-channel pattern).
package gwservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/c360/webpa-gateway/auth"
	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/config"
	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/events"
	"github.com/c360/webpa-gateway/metrics"
	"github.com/c360/webpa-gateway/natsclient"
	"github.com/c360/webpa-gateway/parambus"
	"github.com/c360/webpa-gateway/translator"
	"github.com/c360/webpa-gateway/txn"
	"github.com/c360/webpa-gateway/uplink"
)

// Status mirrors the lifecycle states this codebase's long-running
// processes report through their own Status/Info types.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info is the Service's externally observable state.
type Info struct {
	Status    Status      `json:"status"`
	StartTime time.Time   `json:"start_time"`
	Component string      `json:"component"`
	Mode      config.Mode `json:"mode"`
}

// Service is the single process-wide value wiring every package in this
// module into a runnable gateway. It is constructed once via New and
// driven through Init then Run then Shutdown; Init and Shutdown are each
// enforced to run at most once.
type Service struct {
	cfg    config.Config
	logger *slog.Logger

	bus        parambus.Bus
	natsClient *natsclient.Client
	paramCache *cache.Cache
	policy     *auth.Policy
	pipeline   *events.Pipeline
	tr         *translator.Translator
	txnEngine  *txn.Engine
	session    *uplink.Session
	transport  uplink.Transport
	metrics    *metrics.GatewayMetrics

	status    atomic.Value
	startTime atomic.Value

	initialized atomic.Bool
	shutdown    atomic.Bool
}

// New returns an unstarted Service. Call Init before Run.
func New(cfg config.Config) *Service {
	s := &Service{cfg: cfg}
	s.status.Store(StatusStopped)
	s.startTime.Store(time.Time{})
	return s
}

// Status returns the Service's current lifecycle status.
func (s *Service) Status() Status {
	return s.status.Load().(Status)
}

// Info returns the Service's current externally observable state.
func (s *Service) Info() Info {
	return Info{
		Status:    s.Status(),
		StartTime: s.startTime.Load().(time.Time),
		Component: s.cfg.Component,
		Mode:      s.cfg.Mode,
	}
}

// Init validates configuration and constructs every component, wiring the
// translator's subscribe sink into the event pipeline and the pipeline's
// publisher into the uplink session. It is a no-op on a second call.
func (s *Service) Init(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return nil
	}

	cfg, err := s.cfg.Validate()
	if err != nil {
		return errors.Wrap(err, "gwservice", "Init", "invalid configuration")
	}
	s.cfg = cfg
	s.logger = cfg.NewLogger().With("component", cfg.Component)

	s.status.Store(StatusStarting)

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.MaxEntries = cfg.Cache.MaxEntries
	}
	if cfg.Cache.DefaultTTL > 0 {
		cacheCfg.DefaultTTL = cfg.Cache.DefaultTTL
	}
	if cfg.Cache.CleanupInterval > 0 {
		cacheCfg.CleanupInterval = cfg.Cache.CleanupInterval
	}
	s.paramCache = cache.New(ctx, cacheCfg)

	s.policy = auth.NewPolicy(policyRulesFromConfig(cfg.Auth)...)

	switch cfg.Mode {
	case config.ModeReal:
		client, err := natsclient.NewClient(cfg.NATSURL)
		if err != nil {
			return errors.Wrap(err, "gwservice", "Init", "constructing nats client")
		}
		if err := client.Connect(ctx); err != nil {
			return errors.Wrap(err, "gwservice", "Init", "connecting to nats")
		}
		s.natsClient = client
		s.bus = parambus.NewNATSBus(client)

		transport, err := uplink.NewNATSTransport(ctx, client, cfg.Component)
		if err != nil {
			return errors.Wrap(err, "gwservice", "Init", "constructing nats uplink transport")
		}
		s.transport = transport
	case config.ModeMock:
		s.bus = parambus.NewMockBus()
		s.transport = uplink.NewLineTransport(os.Stdin, os.Stdout)
	case config.ModeWS:
		s.bus = parambus.NewMockBus()
		transport, err := uplink.NewWebSocketTransport(ctx, cfg.WSAddr, cfg.WSPath)
		if err != nil {
			return errors.Wrap(err, "gwservice", "Init", "starting websocket uplink transport")
		}
		s.transport = transport
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "gwservice", "Init",
			fmt.Sprintf("unsupported mode %q", cfg.Mode))
	}

	if err := s.bus.Open(ctx, cfg.Component); err != nil {
		return errors.Wrap(err, "gwservice", "Init", "opening parambus handle")
	}

	s.pipeline = events.NewPipeline(cfg.Component, cfg.EventsEndpoint, s.paramCache, nil)
	s.tr = translator.New(s.bus, s.paramCache, s.policy, s.pipeline.OnEvent)
	s.txnEngine = txn.NewEngine(s.bus, txn.NewMemoryStore(), s.publishTransactionOutcome)

	s.session = uplink.NewSession(s.transport, s.handleFrame, cfg.ServiceName, cfg.EventsEndpoint, s.logger)
	s.session.ReceiveTimeout = cfg.ReceiveTimeout
	s.pipeline.Out = s.session

	s.metrics = metrics.NewGatewayMetrics()

	return nil
}

// Metrics returns the Service's Prometheus collectors, for registration
// with the process's own prometheus.Registerer. Exposing them over HTTP is
// the caller's responsibility.
func (s *Service) Metrics() *metrics.GatewayMetrics {
	return s.metrics
}

// Run drives the uplink receive loop until ctx is cancelled or Stop is
// called on the Service. A background tick republishes cache statistics
// into the Prometheus gauges every cache cleanup interval.
func (s *Service) Run(ctx context.Context) error {
	s.status.Store(StatusRunning)
	s.startTime.Store(time.Now())
	s.metrics.ServiceStatus.Set(float64(StatusRunning))
	s.logger.Info("gateway running", "mode", s.cfg.Mode, "component", s.cfg.Component)

	tickerInterval := s.cfg.Cache.CleanupInterval
	if tickerInterval <= 0 {
		tickerInterval = time.Minute
	}
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()
	stopMetrics := make(chan struct{})
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopMetrics:
				return
			case <-ticker.C:
				s.metrics.ObserveCache(s.paramCache)
			}
		}
	}()

	err := s.session.Run(ctx)
	close(stopMetrics)
	s.status.Store(StatusStopping)
	s.metrics.ServiceStatus.Set(float64(StatusStopping))
	<-metricsDone
	return err
}

// Stop signals the uplink receive loop to exit after its current
// iteration; it does not itself close the bus or transport.
func (s *Service) Stop() {
	if s.session != nil {
		s.session.Stop()
	}
}

// Shutdown releases every resource Init acquired, in reverse order. It is
// a no-op on a second call.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.status.Store(StatusStopping)

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.transport != nil {
		record(s.transport.Close(ctx))
	}
	if s.bus != nil {
		record(s.bus.Close(ctx))
	}
	if s.paramCache != nil {
		record(s.paramCache.Close())
	}
	if s.natsClient != nil {
		record(s.natsClient.Close(ctx))
	}

	s.status.Store(StatusStopped)
	return firstErr
}

// handleFrame is the uplink.RequestHandler: it normalizes the frame
// payload, dispatches it against the translator, and re-encodes the
// response in whichever dialect the request arrived in.
func (s *Service) handleFrame(ctx context.Context, payload []byte, fallbackID string) ([]byte, error) {
	req, err := translator.Normalize(payload, fallbackID)
	if err != nil {
		return json.Marshal(translator.Response{
			Status:  errors.ClassifyKind(err).HTTPStatus(),
			Message: err.Error(),
		})
	}

	resp := s.tr.Dispatch(ctx, req, identityFromContext(ctx))

	if req.IsWebPA() {
		return json.Marshal(translator.Shape(req, resp))
	}
	return json.Marshal(resp)
}

// publishTransactionOutcome is the txn.PublishFunc: it emits a
// transaction-status notification through the event pipeline's
// destination/source so rollback and completion are visible the same way
// a value-change event is.
func (s *Service) publishTransactionOutcome(outcome txn.Outcome) {
	n := events.FromTransactionStatus(outcome.TransactionID, string(outcome.Status), outcome.RolledBack,
		s.cfg.Component, s.cfg.EventsEndpoint)
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("failed to marshal transaction status notification", "error", err)
		return
	}
	if s.pipeline.Out != nil {
		if err := s.pipeline.Out.PublishNotification(payload); err != nil {
			s.logger.Warn("failed to publish transaction status notification", "error", err)
		}
	}
}

// identityFromContext extracts the caller's auth.Identity from ctx.
// The uplink transport carries no authentication material of its own in
// either mode, so callers are anonymous-but-authenticated: trusted because
// the transport itself (a local NATS subject or stdio pipe) is the
// authentication boundary.
func identityFromContext(ctx context.Context) auth.Identity {
	if id, ok := ctx.Value(identityContextKey{}).(auth.Identity); ok {
		return id
	}
	return auth.Identity{Authenticated: true, Role: auth.RoleOperator}
}

type identityContextKey struct{}

// WithIdentity returns a context carrying id for identityFromContext to
// recover inside handleFrame.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func policyRulesFromConfig(cfg config.AuthConfig) []auth.Rule {
	rules := make([]auth.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, auth.Rule{
			Pattern:     r.Pattern,
			Permissions: auth.Permission(r.Permissions),
			MinRole:     auth.Role(r.MinRole),
			RequireAuth: r.RequireAuth,
		})
	}
	return rules
}
