package domain

import "time"

// PlayResult is returned once a request has been accepted by the playback manager.
type PlayResult struct {
	RequestID   string      `json:"request_id"`
	Environment Environment `json:"environment"`
	State       string      `json:"state"`
	Strategy    string      `json:"strategy,omitempty"`
}

// SessionStatus is a snapshot of an embedded playback session.
type SessionStatus struct {
	Position   time.Duration `json:"-"`
	Duration   time.Duration `json:"-"`
	Playing    bool          `json:"playing"`
	Buffering  bool          `json:"buffering"`
	Fullscreen bool          `json:"fullscreen"`
	Closed     bool          `json:"closed"`
	LastError  string        `json:"last_error,omitempty"`

	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type PlaybackStatus struct {
	Environment Environment    `json:"environment"`
	RequestID   string         `json:"request_id,omitempty"`
	Title       string         `json:"title,omitempty"`
	State       string         `json:"state,omitempty"`
	Strategy    string         `json:"strategy,omitempty"`
	Session     *SessionStatus `json:"session,omitempty"`
	LastExit    *ExitRecord    `json:"last_exit,omitempty"`
}

type ExitRecord struct {
	RequestID string    `json:"request_id"`
	Strategy  string    `json:"strategy"`
	At        time.Time `json:"at"`
}

type PlayFileRequest struct {
	Infohash string `json:"infohash"`
	FilePath string `json:"file_path,omitempty"`
	AutoPlay bool   `json:"auto_play"`
}

const (
	ControlTogglePause    = "toggle_pause"
	ControlSeek           = "seek"
	ControlSeekForward    = "seek_forward"
	ControlSeekBackward   = "seek_backward"
	ControlExitFullscreen = "exit_fullscreen"
)

type ControlRequest struct {
	Action          string  `json:"action"`
	PositionSeconds float64 `json:"position_seconds,omitempty"`
}

type StopResult struct {
	OK               bool   `json:"ok"`
	StoppedRequestID string `json:"stopped_request_id"`
}
