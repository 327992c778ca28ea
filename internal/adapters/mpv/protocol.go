package mpv

import (
	"encoding/json"
	"time"

	"torrplay.app/player/internal/adapters"
)

type command struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

// message is either a command reply (RequestID set) or an event.
type message struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

const (
	propTimePos        = "time-pos"
	propDuration       = "duration"
	propPause          = "pause"
	propPausedForCache = "paused-for-cache"
	propFullscreen     = "fullscreen"
)

var observed = []string{propTimePos, propDuration, propPause, propPausedForCache, propFullscreen}

// translate maps an mpv event onto an engine event. ok is false for events
// that carry nothing the session mirrors.
func translate(msg message) (ev adapters.EngineEvent, ok bool) {
	switch msg.Event {
	case "property-change":
		return translateProperty(msg)
	case "end-file":
		switch msg.Reason {
		case "eof":
			return adapters.EngineEvent{Kind: adapters.EventEnded}, true
		case "error":
			text := msg.FileError
			if text == "" {
				text = "playback failed"
			}
			return adapters.EngineEvent{Kind: adapters.EventError, Err: &PlaybackError{Reason: text}}, true
		}
	}
	return adapters.EngineEvent{}, false
}

func translateProperty(msg message) (adapters.EngineEvent, bool) {
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return adapters.EngineEvent{}, false
	}
	switch msg.Name {
	case propTimePos, propDuration:
		var seconds float64
		if json.Unmarshal(msg.Data, &seconds) != nil {
			return adapters.EngineEvent{}, false
		}
		d := time.Duration(seconds * float64(time.Second))
		if msg.Name == propTimePos {
			return adapters.EngineEvent{Kind: adapters.EventPosition, Position: d}, true
		}
		return adapters.EngineEvent{Kind: adapters.EventDuration, Duration: d}, true
	case propPause, propPausedForCache, propFullscreen:
		var flag bool
		if json.Unmarshal(msg.Data, &flag) != nil {
			return adapters.EngineEvent{}, false
		}
		kind := adapters.EventPaused
		switch msg.Name {
		case propPausedForCache:
			kind = adapters.EventBuffering
		case propFullscreen:
			kind = adapters.EventFullscreen
		}
		return adapters.EngineEvent{Kind: kind, Flag: flag}, true
	}
	return adapters.EngineEvent{}, false
}

type PlaybackError struct {
	Reason string
}

func (e *PlaybackError) Error() string { return "mpv: " + e.Reason }

type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string { return "mpv " + e.Command + ": " + e.Reason }
