package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/embedded"
	"torrplay.app/player/internal/handoff"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAdapter struct {
	name   string
	settle time.Duration
	mode   string // "resolve", "reject", "panic", "hold"

	mu    sync.Mutex
	calls []domain.PlaybackRequest
	held  []*handoff.Completion
}

func (f *fakeAdapter) Name() string               { return f.name }
func (f *fakeAdapter) SettleDelay() time.Duration { return f.settle }

func (f *fakeAdapter) Handoff(_ context.Context, req domain.PlaybackRequest) *handoff.Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	c := handoff.NewCompletion()
	switch f.mode {
	case "reject":
		c.Reject(errors.New("launcher unavailable"))
	case "panic":
		panic("adapter blew up")
	case "hold":
		f.held = append(f.held, c)
	default:
		c.Resolve()
	}
	return c
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEngine struct {
	mu          sync.Mutex
	listener    adapters.EngineListener
	fullscreens []bool
	loads       int
}

func (f *fakeEngine) Load(_ context.Context, _ adapters.MediaSource, _ bool, l adapters.EngineListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.listener = l
	return nil
}
func (f *fakeEngine) SetPaused(bool) error     { return nil }
func (f *fakeEngine) Seek(time.Duration) error { return nil }
func (f *fakeEngine) Stop() error              { return nil }
func (f *fakeEngine) SetFullscreen(fs bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullscreens = append(f.fullscreens, fs)
	return nil
}

func (f *fakeEngine) emit(ev adapters.EngineEvent) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	l.HandleEngineEvent(ev)
}

// fakeTimers captures settle delays and fires them on demand.
type fakeTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
	stopped int
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	f.pending = append(f.pending, fn)
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopped++
		return true
	}
}

func (f *fakeTimers) fireAll() {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (f *fakeTimers) waitScheduled(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.delays) >= n
	}, 2*time.Second, time.Millisecond)
}

type harness struct {
	intent   *fakeAdapter
	tv       *fakeAdapter
	redirect *fakeAdapter
	engine   *fakeEngine
	ctrl     *embedded.Controller
	timers   *fakeTimers
	exits    atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		intent:   &fakeAdapter{name: handoff.StrategyIntent, settle: 100 * time.Millisecond},
		tv:       &fakeAdapter{name: handoff.StrategyTVService},
		redirect: &fakeAdapter{name: handoff.StrategyRedirect, settle: 250 * time.Millisecond},
		engine:   &fakeEngine{},
		timers:   &fakeTimers{},
	}
	ctrl, err := embedded.NewController(h.engine, 10*time.Second)
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) options() Options {
	return Options{
		Intent:    h.intent,
		TVService: h.tv,
		Redirect:  h.redirect,
		Embedded:  h.ctrl,
		AfterFunc: h.timers.AfterFunc,
	}
}

func (h *harness) newDispatcher(t *testing.T, req domain.PlaybackRequest) *Dispatcher {
	t.Helper()
	d, err := New(context.Background(), req, func() { h.exits.Add(1) }, h.options())
	require.NoError(t, err)
	t.Cleanup(d.Cancel)
	return d
}

func (h *harness) strategyCalls() int {
	n := h.intent.callCount() + h.tv.callCount() + h.redirect.callCount()
	h.engine.mu.Lock()
	n += h.engine.loads
	h.engine.mu.Unlock()
	return n
}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never finished")
	}
}

var scenarioRequest = domain.PlaybackRequest{
	ID:        "req-1",
	SourceURL: "http://host/stream/abc?filepath=a.mp4",
	Title:     "Abc",
	AutoPlay:  true,
}

func TestGuardLatchesOnce(t *testing.T) {
	var g Guard
	assert.False(t, g.Latched())
	assert.True(t, g.TryLatch())
	assert.False(t, g.TryLatch())
	assert.False(t, g.TryLatch())
	assert.True(t, g.Latched())

	var fresh Guard
	assert.True(t, fresh.TryLatch())
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	h := newHarness(t)

	_, err := New(context.Background(), scenarioRequest, nil, h.options())
	assert.Error(t, err)

	opts := h.options()
	opts.TVService = nil
	opts.Embedded = nil
	_, err = New(context.Background(), scenarioRequest, func() {}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tv service adapter is required")
	assert.Contains(t, err.Error(), "embedded controller is required")
}

func TestPendingEnvironmentHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	d := h.newDispatcher(t, scenarioRequest)
	assert.Equal(t, StateIdle, d.State())

	d.Evaluate()
	d.Evaluate()
	d.SetEnvironment(domain.EnvironmentPending)

	assert.Equal(t, StateAwaitingEnvironment, d.State())
	assert.Zero(t, h.strategyCalls())
	assert.Zero(t, h.exits.Load())
}

func TestInvalidRequestExitsImmediately(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url", "/relative/path"} {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t)
			d := h.newDispatcher(t, domain.PlaybackRequest{SourceURL: raw, AutoPlay: true})

			d.Evaluate()
			d.SetEnvironment(domain.EnvironmentNativeMobileApp)
			d.Evaluate()

			assert.Equal(t, int32(1), h.exits.Load())
			assert.Equal(t, StateDispatched, d.State())
			assert.Equal(t, StrategyNone, d.Strategy())
			assert.Zero(t, h.strategyCalls())
		})
	}
}

func TestNativeMobileScenario(t *testing.T) {
	h := newHarness(t)
	d := h.newDispatcher(t, scenarioRequest)

	d.SetEnvironment(domain.EnvironmentNativeMobileApp)
	d.Evaluate()
	d.SetEnvironment(domain.EnvironmentNativeMobileApp)

	h.timers.waitScheduled(t, 1)
	assert.Zero(t, h.exits.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, h.timers.delays)

	h.timers.fireAll()
	waitDone(t, d)

	assert.Equal(t, int32(1), h.exits.Load())
	assert.Equal(t, 1, h.intent.callCount())
	assert.Equal(t, 1, h.strategyCalls())
	assert.Equal(t, handoff.StrategyIntent, d.Strategy())

	intent := handoff.BuildIntent(h.intent.calls[0])
	assert.Equal(t, domain.ActionView, intent.Action)
	assert.Equal(t, "http://host/stream/abc?filepath=a.mp4", intent.Data)
	assert.Equal(t, "video/*", intent.Type)
	assert.Equal(t, "Abc", intent.Extra["title"])
}

func TestStandardWebScenario(t *testing.T) {
	h := newHarness(t)
	d := h.newDispatcher(t, scenarioRequest)

	d.SetEnvironment(domain.EnvironmentStandardWeb)
	d.Evaluate()

	session := d.Session()
	require.NotNil(t, session)
	assert.Equal(t, StrategyEmbedded, d.Strategy())
	assert.Zero(t, h.intent.callCount()+h.tv.callCount()+h.redirect.callCount())
	assert.Equal(t, []bool{true}, h.engine.fullscreens)

	h.engine.emit(adapters.EngineEvent{Kind: adapters.EventFullscreen, Flag: true})
	h.engine.emit(adapters.EngineEvent{Kind: adapters.EventFullscreen, Flag: false})
	h.engine.emit(adapters.EngineEvent{Kind: adapters.EventFullscreen, Flag: false})
	waitDone(t, d)

	assert.Equal(t, int32(1), h.exits.Load())
	assert.True(t, session.Closed())
}

func TestTvPackagedScenario(t *testing.T) {
	h := newHarness(t)
	req := scenarioRequest
	req.MimeTypeHint = "video/mp4"
	d := h.newDispatcher(t, req)

	d.SetEnvironment(domain.EnvironmentTvPackaged)
	waitDone(t, d)

	assert.Equal(t, int32(1), h.exits.Load())
	assert.Empty(t, h.timers.delays)
	require.Equal(t, 1, h.tv.callCount())

	payload := handoff.BuildMediaPayload(h.tv.calls[0])
	assert.Contains(t, payload.DLNAInfo.ProtocolInfo, "video/mp4")
	assert.Equal(t, -1, payload.LastPlayPosition)
}

func TestTvBrowserRedirects(t *testing.T) {
	h := newHarness(t)
	d := h.newDispatcher(t, scenarioRequest)

	d.SetEnvironment(domain.EnvironmentTvBrowser)
	h.timers.waitScheduled(t, 1)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, h.timers.delays)
	h.timers.fireAll()
	waitDone(t, d)

	assert.Equal(t, 1, h.redirect.callCount())
	assert.Equal(t, int32(1), h.exits.Load())
}

func TestAdapterFailureStillExitsOnce(t *testing.T) {
	for _, mode := range []string{"reject", "panic"} {
		t.Run(mode, func(t *testing.T) {
			h := newHarness(t)
			h.intent.mode = mode
			d := h.newDispatcher(t, scenarioRequest)

			d.SetEnvironment(domain.EnvironmentNativeMobileApp)
			waitDone(t, d)
			d.Evaluate()

			assert.Equal(t, int32(1), h.exits.Load())
			assert.Empty(t, h.timers.delays)
			assert.Equal(t, StateDispatched, d.State())
		})
	}
}

func TestEmbeddedStartFailureExits(t *testing.T) {
	h := newHarness(t)
	busy := h.newDispatcher(t, scenarioRequest)
	busy.SetEnvironment(domain.EnvironmentStandardWeb)
	require.NotNil(t, busy.Session())

	d := h.newDispatcher(t, scenarioRequest)
	d.SetEnvironment(domain.EnvironmentStandardWeb)
	waitDone(t, d)

	assert.Equal(t, int32(1), h.exits.Load())
	assert.Nil(t, d.Session())
}

func TestConcurrentEvaluationDispatchesOnce(t *testing.T) {
	h := newHarness(t)
	h.tv.mode = "hold"
	d := h.newDispatcher(t, scenarioRequest)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.SetEnvironment(domain.EnvironmentTvPackaged)
			d.Evaluate()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.tv.callCount())
	h.tv.held[0].Resolve()
	h.tv.held[0].Reject(errors.New("late"))
	waitDone(t, d)
	assert.Equal(t, int32(1), h.exits.Load())
}

func TestEnvironmentNeverChangesOnceResolved(t *testing.T) {
	h := newHarness(t)
	h.tv.mode = "hold"
	d := h.newDispatcher(t, scenarioRequest)

	d.SetEnvironment(domain.EnvironmentTvPackaged)
	d.SetEnvironment(domain.EnvironmentStandardWeb)
	d.SetEnvironment(domain.Environment(42))

	assert.Equal(t, domain.EnvironmentTvPackaged, d.Environment())
	assert.Equal(t, 1, h.strategyCalls())
}

func TestCancelSuppressesExit(t *testing.T) {
	t.Run("before environment", func(t *testing.T) {
		h := newHarness(t)
		d := h.newDispatcher(t, scenarioRequest)
		d.Evaluate()
		d.Cancel()
		d.SetEnvironment(domain.EnvironmentNativeMobileApp)
		waitDone(t, d)

		assert.Zero(t, h.strategyCalls())
		assert.Zero(t, h.exits.Load())
	})

	t.Run("while hand-off pending", func(t *testing.T) {
		h := newHarness(t)
		h.intent.mode = "hold"
		d := h.newDispatcher(t, scenarioRequest)
		d.SetEnvironment(domain.EnvironmentNativeMobileApp)
		d.Cancel()
		h.intent.held[0].Resolve()

		waitDone(t, d)
		assert.Zero(t, h.exits.Load())
	})

	t.Run("during settle delay", func(t *testing.T) {
		h := newHarness(t)
		d := h.newDispatcher(t, scenarioRequest)
		d.SetEnvironment(domain.EnvironmentNativeMobileApp)
		h.timers.waitScheduled(t, 1)

		d.Cancel()
		h.timers.fireAll()
		require.Eventually(t, func() bool {
			h.timers.mu.Lock()
			defer h.timers.mu.Unlock()
			return h.timers.stopped == 1
		}, 2*time.Second, time.Millisecond)
		assert.Zero(t, h.exits.Load())
	})

	t.Run("embedded session", func(t *testing.T) {
		h := newHarness(t)
		d := h.newDispatcher(t, scenarioRequest)
		d.SetEnvironment(domain.EnvironmentStandardWeb)
		session := d.Session()
		require.NotNil(t, session)

		d.Cancel()
		assert.True(t, session.Closed())
		assert.Nil(t, h.ctrl.Active())
		assert.Zero(t, h.exits.Load())
	})
}

func TestRequestsAreIndependent(t *testing.T) {
	h := newHarness(t)
	first := h.newDispatcher(t, scenarioRequest)
	first.SetEnvironment(domain.EnvironmentTvPackaged)
	waitDone(t, first)

	second := h.newDispatcher(t, scenarioRequest)
	assert.Equal(t, StateIdle, second.State())
	second.SetEnvironment(domain.EnvironmentTvPackaged)
	waitDone(t, second)

	assert.Equal(t, 2, h.tv.callCount())
	assert.Equal(t, int32(2), h.exits.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_environment", StateAwaitingEnvironment.String())
	assert.Equal(t, "dispatched", StateDispatched.String())
	assert.Equal(t, "unknown", State(9).String())
}
