package adapters

import (
	"context"
	"encoding/json"
	"time"

	"torrplay.app/player/internal/domain"
)

// IntentLauncher submits an intent to the OS activity launcher. It returns as
// soon as the launcher accepts or rejects the intent.
type IntentLauncher interface {
	StartActivity(ctx context.Context, intent domain.Intent) error
}

// ServiceBridge calls a TV platform service. Exactly one of onSuccess or
// onFailure is invoked, possibly on another goroutine.
type ServiceBridge interface {
	Call(ctx context.Context, req domain.ServiceRequest, onSuccess func(json.RawMessage), onFailure func(error))
}

// Navigator replaces the current browsing context with a URL.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) error
}

// MediaSource is what the embedded engine is asked to play.
type MediaSource struct {
	URL      string
	MimeType string
	Title    string
}

// MediaEngine decodes and renders media. One listener is attached per Load and
// receives events until Stop returns.
type MediaEngine interface {
	Load(ctx context.Context, src MediaSource, autoPlay bool, listener EngineListener) error
	SetPaused(paused bool) error
	Seek(position time.Duration) error
	SetFullscreen(fullscreen bool) error
	Stop() error
}

type EngineListener interface {
	HandleEngineEvent(EngineEvent)
}

type EngineEventKind int

const (
	EventPosition EngineEventKind = iota
	EventDuration
	EventPaused
	EventBuffering
	EventFullscreen
	EventEnded
	EventError
)

var engineEventNames = [...]string{
	"position", "duration", "paused", "buffering", "fullscreen", "ended", "error",
}

func (k EngineEventKind) String() string {
	if k >= 0 && int(k) < len(engineEventNames) {
		return engineEventNames[k]
	}
	return "unknown"
}

// EngineEvent carries one state change. Only the field matching Kind is meaningful.
type EngineEvent struct {
	Kind     EngineEventKind
	Position time.Duration
	Duration time.Duration
	Flag     bool
	Err      error
}
