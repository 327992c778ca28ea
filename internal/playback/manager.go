// Package playback owns the active playback request and exposes it to the tool server.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"torrplay.app/player/internal/catalog"
	"torrplay.app/player/internal/dispatch"
	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/embedded"
	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/metrics"
	"torrplay.app/player/internal/telemetry"
)

type classifier interface {
	Classify() domain.Environment
}

type catalogClient interface {
	GetTorrent(ctx context.Context, infohash string) (catalog.Torrent, error)
	StreamURL(infohash, path string) (string, error)
}

// Manager holds at most one active request. A new Play supersedes the
// previous request the way reopening the player dialog would.
type Manager struct {
	probe   classifier
	catalog catalogClient
	options dispatch.Options
	newID   func() string
	now     func() time.Time
	tracer  trace.Tracer
	logger  zerolog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	mountOnce  sync.Once
	mountDone  chan struct{}
	closeOnce  sync.Once
	closeErr   error

	mu       sync.Mutex
	env      domain.Environment
	active   *dispatch.Dispatcher
	lastExit *domain.ExitRecord
	closed   bool
}

func NewManager(probe classifier, catalog catalogClient, options dispatch.Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		probe:      probe,
		catalog:    catalog,
		options:    options,
		newID:      uuid.NewString,
		now:        time.Now,
		tracer:     telemetry.Tracer("torrplay.playback"),
		logger:     tplog.WithComponent("playback"),
		baseCtx:    ctx,
		baseCancel: cancel,
		mountDone:  make(chan struct{}),
	}
}

// Mount starts environment classification in the background. The result is
// published to whichever request is active when it settles.
func (m *Manager) Mount() {
	m.mountOnce.Do(func() {
		go func() {
			defer close(m.mountDone)
			env := m.probe.Classify()
			metrics.RecordEnvironment(env.String())

			m.mu.Lock()
			m.env = env
			active := m.active
			m.mu.Unlock()

			if active != nil {
				active.SetEnvironment(env)
			}
		}()
	})
}

// Environment mounts if needed and waits for classification.
func (m *Manager) Environment(ctx context.Context) (domain.Environment, error) {
	m.Mount()
	select {
	case <-m.mountDone:
	case <-ctx.Done():
		return domain.EnvironmentPending, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.env, nil
}

func (m *Manager) Play(ctx context.Context, req domain.PlaybackRequest) (*domain.PlayResult, error) {
	if m.isClosed() {
		return nil, toolError(domain.CodeInternalError, "playback manager is shutting down")
	}
	if req.ID == "" {
		req.ID = m.newID()
	}
	_, span := m.tracer.Start(ctx, "torrplay.playback.play", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.Bool("auto_play", req.AutoPlay),
	))
	defer span.End()

	var d *dispatch.Dispatcher
	exit := func() { m.recordExit(d) }
	d, err := dispatch.New(m.baseCtx, req, exit, m.options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, toolError(domain.CodeInternalError, err.Error())
	}

	m.mu.Lock()
	prev := m.active
	m.active = d
	env := m.env
	m.mu.Unlock()
	m.Mount()

	if prev != nil {
		prev.Cancel()
		m.logger.Info().Str(tplog.FieldRequestID, prev.Request().ID).Msg("playback_request_superseded")
	}

	d.SetEnvironment(env)
	d.Evaluate()

	result := &domain.PlayResult{
		RequestID:   req.ID,
		Environment: d.Environment(),
		State:       d.State().String(),
		Strategy:    d.Strategy(),
	}
	span.SetAttributes(
		attribute.String("environment", result.Environment.String()),
		attribute.String("state", result.State),
		attribute.String("strategy", result.Strategy),
	)
	m.logger.Info().
		Str(tplog.FieldRequestID, req.ID).
		Str(tplog.FieldEnvironment, result.Environment.String()).
		Str(tplog.FieldState, result.State).
		Str(tplog.FieldStrategy, result.Strategy).
		Msg("playback_requested")
	return result, nil
}

// PlayFile resolves a file of a catalog torrent into a stream URL and plays it.
func (m *Manager) PlayFile(ctx context.Context, req domain.PlayFileRequest) (*domain.PlayResult, error) {
	infohash := strings.TrimSpace(req.Infohash)
	if infohash == "" {
		return nil, toolError(domain.CodeInvalidRequest, "infohash is required")
	}
	ctx, span := m.tracer.Start(ctx, "torrplay.playback.play_file", trace.WithAttributes(
		attribute.String("infohash", infohash),
	))
	defer span.End()

	torrent, err := m.catalog.GetTorrent(ctx, infohash)
	if err != nil {
		span.RecordError(err)
		return nil, catalog.AsToolError(err)
	}
	file, err := catalog.SelectFile(catalog.VideoFiles(torrent), req.FilePath)
	if err != nil {
		return nil, err
	}
	streamURL, err := m.catalog.StreamURL(infohash, file.Path)
	if err != nil {
		return nil, catalog.AsToolError(err)
	}

	return m.Play(ctx, domain.PlaybackRequest{
		SourceURL: streamURL,
		Title:     file.Name,
		FileName:  file.Name,
		AutoPlay:  req.AutoPlay,
	})
}

func (m *Manager) Status() domain.PlaybackStatus {
	m.mu.Lock()
	status := domain.PlaybackStatus{Environment: m.env}
	if m.lastExit != nil {
		exit := *m.lastExit
		status.LastExit = &exit
	}
	active := m.active
	m.mu.Unlock()

	if active == nil {
		return status
	}
	req := active.Request()
	status.RequestID = req.ID
	status.Title = req.Title
	status.State = active.State().String()
	status.Strategy = active.Strategy()
	if s := active.Session(); s != nil {
		snap := s.Snapshot()
		status.Session = &snap
	}
	return status
}

// Control applies a transport action to the embedded session.
func (m *Manager) Control(_ context.Context, req domain.ControlRequest) (*domain.SessionStatus, error) {
	session := m.activeSession()
	if session == nil {
		return nil, noActiveSessionError()
	}

	var err error
	switch strings.TrimSpace(req.Action) {
	case domain.ControlTogglePause:
		err = session.TogglePause()
	case domain.ControlSeek:
		if req.PositionSeconds < 0 {
			return nil, toolError(domain.CodeInvalidRequest, "position_seconds must not be negative")
		}
		_, err = session.Seek(secondsToDuration(req.PositionSeconds))
	case domain.ControlSeekForward:
		_, err = session.SeekForward()
	case domain.ControlSeekBackward:
		_, err = session.SeekBackward()
	case domain.ControlExitFullscreen:
		err = session.ExitFullscreen()
	default:
		return nil, toolError(domain.CodeInvalidRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
	if errors.Is(err, embedded.ErrSessionClosed) {
		return nil, noActiveSessionError()
	}
	if err != nil {
		return nil, toolError(domain.CodeInternalError, err.Error())
	}
	snap := session.Snapshot()
	return &snap, nil
}

// Stop discards the active request without invoking its exit.
func (m *Manager) Stop(_ context.Context) (*domain.StopResult, error) {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()

	if active == nil {
		return nil, toolError(domain.CodeNoActiveSession, "no playback request is active")
	}
	active.Cancel()
	m.logger.Info().Str(tplog.FieldRequestID, active.Request().ID).Msg("playback_stopped")
	return &domain.StopResult{OK: true, StoppedRequestID: active.Request().ID}, nil
}

func (m *Manager) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		active := m.active
		m.active = nil
		m.mu.Unlock()

		if active != nil {
			active.Cancel()
		}
		m.baseCancel()

		// Mark an unmounted manager as mounted so no probe starts after close.
		m.mountOnce.Do(func() { close(m.mountDone) })
		select {
		case <-m.mountDone:
		case <-ctx.Done():
			m.closeErr = ctx.Err()
		}
	})
	return m.closeErr
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) activeSession() *embedded.Session {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil {
		return nil
	}
	s := active.Session()
	if s == nil || s.Closed() {
		return nil
	}
	return s
}

func (m *Manager) recordExit(d *dispatch.Dispatcher) {
	if d == nil {
		return
	}
	record := &domain.ExitRecord{
		RequestID: d.Request().ID,
		Strategy:  d.Strategy(),
		At:        m.now(),
	}
	m.mu.Lock()
	m.lastExit = record
	if m.active == d {
		m.active = nil
	}
	m.mu.Unlock()
	m.logger.Info().
		Str(tplog.FieldRequestID, record.RequestID).
		Str(tplog.FieldStrategy, record.Strategy).
		Msg("playback_exited")
}

func toolError(code, message string) *domain.ToolError {
	return &domain.ToolError{Code: code, Message: message}
}

func noActiveSessionError() *domain.ToolError {
	return &domain.ToolError{
		Code:           domain.CodeNoActiveSession,
		Message:        "no embedded playback session is active",
		SuggestedFixes: []string{"Start playback with play_file or play_stream on a standard host first."},
	}
}

// secondsToDuration saturates at the largest representable duration.
func secondsToDuration(seconds float64) time.Duration {
	if seconds >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}
