// Package live bridges a stream of application requests to a Gemini Live
// session and exposes the session's output as a pull-based stream.
//
// Lifecycle of one run:
//
//	awaiting first request -> opening session -> streaming -> draining -> closed
//
// Any failure moves the run to closed(failed): the error is reported once on
// the output stream and the session is closed best-effort.
package live

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/google/uuid"
	"github.com/m2tx/live_bridge/internal/asyncchan"
	"github.com/m2tx/live_bridge/internal/credentials"
	"github.com/m2tx/live_bridge/internal/metrics"
	"github.com/m2tx/live_bridge/internal/model"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// Inbound is a pull-based stream of requests. Next returns io.EOF at the end.
type Inbound interface {
	Next(ctx context.Context) (*model.Request, error)
}

type Bridge struct {
	connector Connector
	resolve   credentials.Resolver
	pluginKey credentials.PluginKey
	model     string
	logger    zerolog.Logger
}

type Option func(*Bridge)

func WithModel(name string) Option {
	return func(b *Bridge) {
		if name != "" {
			b.model = name
		}
	}
}

func WithPluginKey(key credentials.PluginKey) Option {
	return func(b *Bridge) { b.pluginKey = key }
}

func WithResolver(r credentials.Resolver) Option {
	return func(b *Bridge) { b.resolve = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

func New(connector Connector, opts ...Option) *Bridge {
	b := &Bridge{
		connector: connector,
		resolve:   credentials.Resolve,
		model:     DefaultModel,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stream is the output of one bridge run.
type Stream struct {
	out    *asyncchan.Channel[*model.ResponseChunk]
	cancel context.CancelFunc
	done   chan struct{}
}

// Next returns the next chunk, io.EOF once the session ended normally, or the
// error that ended it.
func (s *Stream) Next(ctx context.Context) (*model.ResponseChunk, error) {
	return s.out.Next(ctx)
}

func (s *Stream) All(ctx context.Context) iter.Seq2[*model.ResponseChunk, error] {
	return s.out.All(ctx)
}

// Close stops the background run. Use it when abandoning the stream before it
// ends; the session is closed and the output fails with context.Canceled.
func (s *Stream) Close() {
	s.cancel()
}

// Done is closed once the background run has finished and released the session.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Start runs the bridge in the background and returns its output immediately.
func (b *Bridge) Start(ctx context.Context, inbound Inbound) *Stream {
	ctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		out:    asyncchan.New[*model.ResponseChunk](),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r := &run{
		bridge: b,
		out:    s.out,
		log:    b.logger.With().Str("run_id", uuid.NewString()).Logger(),
	}

	go func() {
		defer close(s.done)
		defer cancel()

		outcome := r.loop(ctx, inbound)
		metrics.SessionsTotal.WithLabelValues(outcome).Inc()
		r.log.Debug().Str("outcome", outcome).Msg("bridge finished")
	}()

	return s
}

type run struct {
	bridge *Bridge
	out    *asyncchan.Channel[*model.ResponseChunk]
	log    zerolog.Logger

	mu      sync.Mutex
	session Session
	// gone is set once the transport reported close or error.
	gone bool

	closeOnce sync.Once
}

func (r *run) loop(ctx context.Context, inbound Inbound) string {
	first, err := inbound.Next(ctx)
	if errors.Is(err, io.EOF) {
		r.out.Close()
		return metrics.OutcomeEmpty
	}
	if err != nil {
		return r.fail(err)
	}

	cfg := newSessionConfig(r.bridge.model, first)

	var requestKey string
	if first.Config != nil {
		requestKey = first.Config.APIKey
	}
	apiKey, err := r.bridge.resolve(r.bridge.pluginKey, requestKey)
	if err != nil {
		return r.fail(configurationError("unable to resolve api key", err))
	}

	if cfg.CandidateCount > 1 {
		r.log.Warn().Int("candidates", cfg.CandidateCount).Msg("live sessions produce a single candidate, ignoring candidate count")
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	sess, err := r.bridge.connector.Connect(ctx, ConnectParams{
		Model:  cfg.Model,
		APIKey: apiKey,
		Config: cfg.LiveConnectConfig(),
	}, r.callbacks())
	if err != nil {
		return r.fail(sessionError("connect", err))
	}
	r.attach(sess)

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	if err := r.stream(ctx, inbound, first); err != nil {
		outcome := r.fail(err)
		r.closeSession(sess)
		return outcome
	}

	r.closeSession(sess)
	r.out.Close()
	return metrics.OutcomeClosed
}

func (r *run) fail(err error) string {
	r.out.Fail(err)

	switch {
	case errors.Is(err, context.Canceled):
		r.log.Debug().Err(err).Msg("bridge aborted")
		return metrics.OutcomeAborted
	case errors.Is(err, ErrSessionClosed):
		r.log.Debug().Msg("session closed by transport while turns were pending")
		return metrics.OutcomeClosed
	}

	r.log.Error().Err(err).Msg("bridge failed")
	return metrics.OutcomeFailed
}

// stream forwards the first request (minus system turns) and then every later
// request in arrival order.
func (r *run) stream(ctx context.Context, inbound Inbound, first *model.Request) error {
	for _, t := range first.Messages {
		if t.Role == model.RoleSystem {
			continue
		}
		if err := r.forward(ctx, t); err != nil {
			return err
		}
	}

	for {
		req, err := inbound.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, t := range req.Messages {
			if t.Role == model.RoleSystem {
				r.log.Warn().Msg("system message after session start, skipping")
				continue
			}
			if err := r.forward(ctx, t); err != nil {
				return err
			}
		}
	}
}

func (r *run) forward(ctx context.Context, turn model.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.current()
	if s == nil {
		return sessionError("forward turn", ErrSessionClosed)
	}

	return sendToSession(s, turn)
}

func (r *run) callbacks() Callbacks {
	return Callbacks{
		OnOpen: func() {
			r.log.Debug().Msg("connection established")
		},
		OnMessage: func(msg *genai.LiveServerMessage) {
			if msg == nil {
				return
			}
			if msg.GoAway != nil {
				r.log.Warn().Dur("time_left", msg.GoAway.TimeLeft).Msg("server will disconnect soon")
			}
			if msg.UsageMetadata != nil {
				r.log.Debug().Int32("total_tokens", msg.UsageMetadata.TotalTokenCount).Msg("usage")
			}
			for _, chunk := range chunksFromMessage(msg) {
				r.out.Enqueue(chunk)
			}
		},
		OnClose: func(reason string) {
			r.log.Debug().Str("reason", reason).Msg("connection closed")
			r.out.Close()
			r.detach()
		},
		OnError: func(err error) {
			r.log.Warn().Err(err).Msg("connection error")
			r.out.Fail(sessionError("live session", err))
			r.detach()
		},
	}
}

// attach stores the session unless the transport already went away while
// connecting.
func (r *run) attach(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gone {
		r.session = s
	}
}

func (r *run) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	r.gone = true
}

func (r *run) current() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// closeSession closes s exactly once. A close error is logged, never returned.
func (r *run) closeSession(s Session) {
	r.closeOnce.Do(func() {
		if err := s.Close(); err != nil {
			r.log.Debug().Err(err).Msg("close session")
		}
	})
}
