// Package embedded runs playback inside torrplay when no external hand-off applies.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/metrics"
)

var (
	ErrEngineBusy    = errors.New("media engine is owned by another session")
	ErrSessionClosed = errors.New("playback session is closed")
)

const DefaultSeekStep = 10 * time.Second

// Controller hands the media engine to one session at a time.
type Controller struct {
	engine   adapters.MediaEngine
	seekStep time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	active *Session
}

func NewController(engine adapters.MediaEngine, seekStep time.Duration) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("embedded controller requires a media engine")
	}
	if seekStep <= 0 {
		seekStep = DefaultSeekStep
	}
	return &Controller{
		engine:   engine,
		seekStep: seekStep,
		logger:   tplog.WithComponent("embedded"),
	}, nil
}

// Start loads req into the engine and returns the session owning it. native
// reports whether the host is a native app shell, which suppresses the
// automatic fullscreen request. onExit runs once when the user leaves fullscreen.
func (c *Controller) Start(ctx context.Context, req domain.PlaybackRequest, native bool, onExit func()) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, ErrEngineBusy
	}
	s := newSession(c, req, onExit)
	c.active = s
	c.mu.Unlock()

	src := adapters.MediaSource{
		URL:      strings.TrimSpace(req.SourceURL),
		MimeType: ResolveMimeType(req.DisplayName(), req.MimeTypeHint),
		Title:    req.Title,
	}
	logger := s.logger.With().Str(tplog.FieldMimeType, src.MimeType).Logger()

	if err := c.engine.Load(ctx, src, req.AutoPlay, s); err != nil {
		// The engine may already hold s as its listener.
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		c.release(s)
		logger.Error().Err(err).Msg("embedded_load_failed")
		return nil, fmt.Errorf("load media: %w", err)
	}
	metrics.EmbeddedSessionStarted()

	s.mu.Lock()
	s.playing = req.AutoPlay
	s.mu.Unlock()

	if req.AutoPlay && !native {
		if err := c.engine.SetFullscreen(true); err != nil {
			s.recordError(fmt.Errorf("request fullscreen: %w", err))
		} else {
			// An engine already in fullscreen reports no change event.
			s.mu.Lock()
			if !s.closed {
				s.fullscreen = true
			}
			s.mu.Unlock()
		}
	}
	logger.Info().Bool("auto_play", req.AutoPlay).Bool("native", native).Msg("embedded_session_started")
	return s, nil
}

// Active returns the session currently owning the engine, if any.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) release(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != s {
		return false
	}
	c.active = nil
	return true
}
