package uplink

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// RequestHandler turns a decoded request payload into a response payload.
// fallbackID is the frame's transaction id, used when the payload itself
// carries no id. Implementations never need to return an error for
// ordinary request-level failures (those are captured as a non-2xx status
// in the returned payload); a non-nil error here means the payload could
// not be turned into a response at all, and the frame is dropped.
type RequestHandler func(ctx context.Context, payload []byte, fallbackID string) ([]byte, error)

// Session is the single-threaded uplink receive loop: for each inbound
// frame of a dispatchable kind, invoke Handler and reply with a frame of
// the same kind, source/destination swapped, transaction id preserved.
type Session struct {
	Transport      Transport
	Handler        RequestHandler
	ServiceName    string
	EventsEndpoint string
	ReceiveTimeout time.Duration

	logger  *slog.Logger
	running atomic.Bool
}

// NewSession constructs a Session. logger may be nil, in which case
// slog.Default() is used.
func NewSession(transport Transport, handler RequestHandler, serviceName, eventsEndpoint string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		Transport:      transport,
		Handler:        handler,
		ServiceName:    serviceName,
		EventsEndpoint: eventsEndpoint,
		ReceiveTimeout: 500 * time.Millisecond,
		logger:         logger,
	}
	s.running.Store(true)
	return s
}

// Stop sets the cooperative cancellation flag; Run exits after its current
// iteration completes.
func (s *Session) Stop() {
	s.running.Store(false)
}

// Run drives the receive loop until Stop is called or ctx is cancelled.
// On exit it does not itself close the transport — the caller owns that,
// so it can unsubscribe/drain in whatever order its own shutdown sequence
// requires.
func (s *Session) Run(ctx context.Context) error {
	for s.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := s.Transport.Receive(ctx, s.ReceiveTimeout)
		if err != nil {
			if errors.Is(err, ErrNoFrame) {
				continue
			}
			s.logger.Warn("uplink receive failed, dropping", "error", err)
			continue
		}

		s.handleFrame(ctx, frame)
	}
	return nil
}

func (s *Session) handleFrame(ctx context.Context, frame Frame) {
	if !dispatchableKinds[frame.Kind] {
		s.logger.Debug("dropping non-dispatchable frame", "kind", frame.Kind)
		return
	}
	if len(frame.Payload) == 0 {
		s.logger.Debug("dropping empty-payload frame", "kind", frame.Kind)
		return
	}

	respPayload, err := s.Handler(ctx, frame.Payload, frame.TransactionUUID)
	if err != nil {
		s.logger.Warn("request handler failed, dropping frame", "error", err)
		return
	}

	out := reply(frame, respPayload)
	if out.Kind == KindEvent && out.Dest == "" {
		out.Dest = s.EventsEndpoint
	}
	if err := s.Transport.Send(ctx, out); err != nil {
		s.logger.Warn("uplink send failed, dropping reply", "error", err)
	}
}

// PublishNotification implements events.Publisher: it frames payload as an
// event destined for the configured events endpoint, sourced from this
// session's service name.
func (s *Session) PublishNotification(payload []byte) error {
	frame := Frame{
		Kind:        KindEvent,
		Source:      s.ServiceName,
		Dest:        s.EventsEndpoint,
		ContentType: "application/json",
		Payload:     payload,
	}
	return s.Transport.Send(context.Background(), frame)
}
