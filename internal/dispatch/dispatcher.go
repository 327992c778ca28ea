// Package dispatch resolves a playback request to exactly one strategy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/embedded"
	"torrplay.app/player/internal/handoff"
	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/metrics"
)

// Embedded starts in-process playback when no hand-off applies.
type Embedded interface {
	Start(ctx context.Context, req domain.PlaybackRequest, native bool, onExit func()) (*embedded.Session, error)
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

type Options struct {
	Intent    handoff.Adapter
	TVService handoff.Adapter
	Redirect  handoff.Adapter
	Embedded  Embedded
	AfterFunc AfterFunc
}

func (o Options) validate() error {
	var errs []error
	if o.Intent == nil {
		errs = append(errs, errors.New("intent adapter is required"))
	}
	if o.TVService == nil {
		errs = append(errs, errors.New("tv service adapter is required"))
	}
	if o.Redirect == nil {
		errs = append(errs, errors.New("redirect adapter is required"))
	}
	if o.Embedded == nil {
		errs = append(errs, errors.New("embedded controller is required"))
	}
	return errors.Join(errs...)
}

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Dispatcher owns the dispatch state of one request. The exit callback runs
// at most once, and never after Cancel.
type Dispatcher struct {
	req    domain.PlaybackRequest
	exit   func()
	opts   Options
	guard  Guard
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	env       domain.Environment
	state     State
	strategy  string
	session   *embedded.Session
	stopTimer func() bool
	cancelled bool
	exited    bool
	doneOnce  sync.Once
}

// New builds a dispatcher for req. Missing collaborators or a nil exit are
// construction defects and fail loudly.
func New(ctx context.Context, req domain.PlaybackRequest, exit func(), opts Options) (*Dispatcher, error) {
	if exit == nil {
		return nil, errors.New("dispatch: exit callback is required")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = timeAfterFunc
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		req:    req,
		exit:   exit,
		opts:   opts,
		logger: tplog.WithComponent("dispatch").With().Str(tplog.FieldRequestID, req.ID).Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

func (d *Dispatcher) Request() domain.PlaybackRequest { return d.req }

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) Strategy() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.strategy
}

func (d *Dispatcher) Environment() domain.Environment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.env
}

// Session returns the embedded session when the request was dispatched to it.
func (d *Dispatcher) Session() *embedded.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Done is closed once the exit callback has run or the request was cancelled.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// SetEnvironment publishes the classification result and re-evaluates.
// Pending and unknown values are ignored, as is any change after resolution.
func (d *Dispatcher) SetEnvironment(env domain.Environment) {
	if !knownEnvironment(env) || !env.Resolved() {
		return
	}
	d.mu.Lock()
	if d.env.Resolved() {
		d.mu.Unlock()
		if d.Environment() != env {
			d.logger.Warn().Str(tplog.FieldEnvironment, env.String()).Msg("dispatch_environment_change_ignored")
		}
		return
	}
	d.env = env
	d.mu.Unlock()
	d.Evaluate()
}

func knownEnvironment(env domain.Environment) bool {
	switch env {
	case domain.EnvironmentPending,
		domain.EnvironmentNativeMobileApp,
		domain.EnvironmentTvPackaged,
		domain.EnvironmentTvBrowser,
		domain.EnvironmentStandardWeb:
		return true
	}
	return false
}

// Evaluate dispatches the request when the environment is resolved and the
// guard has not latched yet. Repeated calls are no-ops.
func (d *Dispatcher) Evaluate() {
	d.mu.Lock()
	if d.cancelled || d.state == StateDispatched {
		d.mu.Unlock()
		return
	}

	if err := d.req.Validate(); err != nil {
		if !d.guard.TryLatch() {
			d.mu.Unlock()
			return
		}
		d.state = StateDispatched
		d.strategy = StrategyNone
		d.mu.Unlock()

		d.logger.Error().Err(err).Str(tplog.FieldSourceURL, d.req.SourceURL).Msg("dispatch_invalid_request")
		metrics.RecordDispatch(StrategyNone, metrics.OutcomeInvalid)
		d.fireExit()
		return
	}

	if !d.env.Resolved() {
		d.state = StateAwaitingEnvironment
		d.mu.Unlock()
		return
	}
	if !d.guard.TryLatch() {
		d.mu.Unlock()
		return
	}
	env := d.env
	d.state = StateDispatched
	d.mu.Unlock()

	d.dispatch(env)
}

func (d *Dispatcher) dispatch(env domain.Environment) {
	var adapter handoff.Adapter
	switch env {
	case domain.EnvironmentNativeMobileApp:
		adapter = d.opts.Intent
	case domain.EnvironmentTvPackaged:
		adapter = d.opts.TVService
	case domain.EnvironmentTvBrowser:
		adapter = d.opts.Redirect
	case domain.EnvironmentStandardWeb:
		d.startEmbedded(env)
		return
	case domain.EnvironmentPending:
		panic("dispatch: dispatching with pending environment")
	default:
		panic(fmt.Sprintf("dispatch: unhandled environment %d", env))
	}
	d.handoff(env, adapter)
}

func (d *Dispatcher) handoff(env domain.Environment, adapter handoff.Adapter) {
	strategy := adapter.Name()
	d.setStrategy(strategy)
	logger := d.logger.With().
		Str(tplog.FieldEnvironment, env.String()).
		Str(tplog.FieldStrategy, strategy).
		Logger()

	completion, err := invoke(d.ctx, adapter, d.req)
	if err != nil {
		logger.Error().Err(err).Msg("handoff_failed")
		metrics.RecordDispatch(strategy, metrics.OutcomeRejected)
		d.fireExit()
		return
	}
	logger.Info().Msg("handoff_submitted")

	go func() {
		select {
		case <-completion.Done():
		case <-d.ctx.Done():
			return
		}
		if err := completion.Err(); err != nil {
			logger.Error().Err(err).Msg("handoff_failed")
			metrics.RecordDispatch(strategy, metrics.OutcomeRejected)
			d.fireExit()
			return
		}
		logger.Info().Msg("handoff_accepted")
		metrics.RecordDispatch(strategy, metrics.OutcomeAccepted)
		d.exitAfter(adapter.SettleDelay())
	}()
}

// invoke calls the adapter, converting a panic or a nil completion into an error.
func invoke(ctx context.Context, adapter handoff.Adapter, req domain.PlaybackRequest) (c *handoff.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%s adapter panic: %v", adapter.Name(), r)
		}
	}()
	c = adapter.Handoff(ctx, req)
	if c == nil {
		return nil, fmt.Errorf("%s adapter returned no completion", adapter.Name())
	}
	return c, nil
}

func (d *Dispatcher) startEmbedded(env domain.Environment) {
	d.setStrategy(StrategyEmbedded)
	logger := d.logger.With().
		Str(tplog.FieldEnvironment, env.String()).
		Str(tplog.FieldStrategy, StrategyEmbedded).
		Logger()

	session, err := d.startSession(env)
	if err != nil {
		logger.Error().Err(err).Msg("embedded_start_failed")
		metrics.RecordDispatch(StrategyEmbedded, metrics.OutcomeFailed)
		d.fireExit()
		return
	}

	d.mu.Lock()
	cancelled := d.cancelled
	if !cancelled {
		d.session = session
	}
	d.mu.Unlock()
	if cancelled {
		session.Close()
		return
	}
	logger.Info().Msg("embedded_dispatched")
	metrics.RecordDispatch(StrategyEmbedded, metrics.OutcomeStarted)
}

func (d *Dispatcher) startSession(env domain.Environment) (s *embedded.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("embedded start panic: %v", r)
		}
	}()
	return d.opts.Embedded.Start(d.ctx, d.req, env == domain.EnvironmentNativeMobileApp, d.fireExit)
}

func (d *Dispatcher) setStrategy(strategy string) {
	d.mu.Lock()
	d.strategy = strategy
	d.mu.Unlock()
}

func (d *Dispatcher) exitAfter(delay time.Duration) {
	if delay <= 0 {
		d.fireExit()
		return
	}
	stop := d.opts.AfterFunc(delay, d.fireExit)
	d.mu.Lock()
	d.stopTimer = stop
	cancelled := d.cancelled
	d.mu.Unlock()
	if cancelled {
		stop()
	}
}

func (d *Dispatcher) fireExit() {
	d.mu.Lock()
	if d.cancelled || d.exited {
		d.mu.Unlock()
		return
	}
	d.exited = true
	d.mu.Unlock()

	d.logger.Debug().Msg("dispatch_exit")
	d.exit()
	d.finish()
}

// Cancel discards the request. Pending settle timers are stopped, an embedded
// session is closed, and the exit callback will not run.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	if d.cancelled {
		d.mu.Unlock()
		return
	}
	d.cancelled = true
	stop := d.stopTimer
	session := d.session
	d.mu.Unlock()

	d.cancel()
	if stop != nil {
		stop()
	}
	if session != nil {
		session.Close()
	}
	d.finish()
}

func (d *Dispatcher) finish() {
	d.doneOnce.Do(func() {
		d.cancel()
		close(d.done)
	})
}
