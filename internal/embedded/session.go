package embedded

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/metrics"
)

// Session is one embedded playback of one request. It ends for good when the
// user leaves fullscreen or the owner closes it.
type Session struct {
	controller *Controller
	request    domain.PlaybackRequest
	onExit     func()
	logger     zerolog.Logger

	mu         sync.Mutex
	position   time.Duration
	duration   time.Duration
	playing    bool
	buffering  bool
	fullscreen bool
	closed     bool
	lastErr    string
}

func newSession(c *Controller, req domain.PlaybackRequest, onExit func()) *Session {
	return &Session{
		controller: c,
		request:    req,
		onExit:     onExit,
		logger:     c.logger.With().Str(tplog.FieldRequestID, req.ID).Logger(),
	}
}

func (s *Session) Request() domain.PlaybackRequest { return s.request }

func (s *Session) Snapshot() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionStatus{
		Position:        s.position,
		Duration:        s.duration,
		Playing:         s.playing,
		Buffering:       s.buffering,
		Fullscreen:      s.fullscreen,
		Closed:          s.closed,
		LastError:       s.lastErr,
		PositionSeconds: s.position.Seconds(),
		DurationSeconds: s.duration.Seconds(),
	}
}

func (s *Session) TogglePause() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	pause := s.playing
	s.mu.Unlock()

	if err := s.controller.engine.SetPaused(pause); err != nil {
		return err
	}
	s.mu.Lock()
	s.playing = !pause
	s.mu.Unlock()
	return nil
}

// Seek moves the playhead to position clamped to [0, duration] and returns
// the position actually requested from the engine. An unknown duration only
// clamps the lower bound.
func (s *Session) Seek(position time.Duration) (time.Duration, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	target := clamp(position, s.duration)
	s.mu.Unlock()

	return target, s.seekTo(target)
}

// SeekBy moves the playhead relative to the current position.
func (s *Session) SeekBy(delta time.Duration) (time.Duration, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	target := clamp(s.position+delta, s.duration)
	s.mu.Unlock()

	return target, s.seekTo(target)
}

func (s *Session) SeekForward() (time.Duration, error) {
	return s.SeekBy(s.controller.seekStep)
}

func (s *Session) SeekBackward() (time.Duration, error) {
	return s.SeekBy(-s.controller.seekStep)
}

func (s *Session) seekTo(target time.Duration) error {
	if err := s.controller.engine.Seek(target); err != nil {
		return err
	}
	s.mu.Lock()
	s.position = target
	s.mu.Unlock()
	return nil
}

func clamp(position, duration time.Duration) time.Duration {
	if position < 0 {
		return 0
	}
	if duration > 0 && position > duration {
		return duration
	}
	return position
}

// ExitFullscreen leaves fullscreen on the user's behalf, which ends the session.
func (s *Session) ExitFullscreen() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	if err := s.controller.engine.SetFullscreen(false); err != nil {
		s.recordError(err)
	}
	s.finish(true, "user_exit_fullscreen")
	return nil
}

// Close tears the session down without invoking the exit callback.
func (s *Session) Close() {
	s.finish(false, "closed")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleEngineEvent mirrors engine state. A fullscreen true to false
// transition is a user exit and ends the session.
func (s *Session) HandleEngineEvent(ev adapters.EngineEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	exited := false
	switch ev.Kind {
	case adapters.EventPosition:
		s.position = ev.Position
	case adapters.EventDuration:
		s.duration = ev.Duration
	case adapters.EventPaused:
		s.playing = !ev.Flag
	case adapters.EventBuffering:
		s.buffering = ev.Flag
	case adapters.EventFullscreen:
		exited = s.fullscreen && !ev.Flag
		s.fullscreen = ev.Flag
	case adapters.EventEnded:
		s.playing = false
		s.buffering = false
	case adapters.EventError:
		if ev.Err != nil {
			s.lastErr = ev.Err.Error()
		}
	}
	s.mu.Unlock()

	if ev.Kind == adapters.EventError && ev.Err != nil {
		s.logger.Error().Err(ev.Err).Msg("embedded_engine_error")
	}
	if exited {
		s.finish(true, "user_exit_fullscreen")
	}
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.logger.Warn().Err(err).Msg("embedded_engine_call_failed")
}

func (s *Session) finish(notify bool, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.fullscreen = false
	s.playing = false
	s.buffering = false
	s.mu.Unlock()

	if s.controller.release(s) {
		metrics.EmbeddedSessionEnded()
	}
	if err := s.controller.engine.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("embedded_engine_stop_failed")
	}
	s.logger.Info().Str("reason", reason).Msg("embedded_session_ended")

	if notify && s.onExit != nil {
		s.onExit()
	}
}
