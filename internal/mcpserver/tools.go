package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"torrplay.app/player/internal/catalog"
	"torrplay.app/player/internal/dispatch"
	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/handoff"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

var errInvalidParams = errors.New("invalid params")

type toolOutput struct {
	text       string
	structured any
	requestID  string
}

type toolHandler func(ctx context.Context, raw json.RawMessage) (toolOutput, error)

func (s *Server) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"probe_environment": s.probeEnvironment,
		"list_torrents":     s.listTorrents,
		"list_video_files":  s.listVideoFiles,
		"play_stream":       s.playStream,
		"play_file":         s.playFile,
		"playback_status":   s.playbackStatus,
		"playback_control":  s.playbackControl,
		"stop_playback":     s.stopPlayback,
	}
}

func (s *Server) requirePlayer() error {
	if s.player == nil {
		return domain.NewToolError(domain.CodeInternalError, "playback manager is not configured")
	}
	return nil
}

func (s *Server) requireCatalog() error {
	if s.catalog == nil {
		return domain.NewToolError(domain.CodeCatalogError, "catalog is not configured")
	}
	return nil
}

func decodeArgs(raw json.RawMessage, out any) error {
	if err := decodeStrict(raw, out); err != nil {
		return errInvalidParams
	}
	return nil
}

func (s *Server) probeEnvironment(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct{}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}
	env, err := s.player.Environment(ctx)
	if err != nil {
		return toolOutput{}, domain.NewToolError(domain.CodeInternalError, err.Error())
	}
	return toolOutput{
		text:       fmt.Sprintf("Host environment: %s (playback strategy: %s).", env, strategyFor(env)),
		structured: map[string]any{"environment": env, "strategy": strategyFor(env)},
	}, nil
}

func strategyFor(env domain.Environment) string {
	switch env {
	case domain.EnvironmentNativeMobileApp:
		return handoff.StrategyIntent
	case domain.EnvironmentTvPackaged:
		return handoff.StrategyTVService
	case domain.EnvironmentTvBrowser:
		return handoff.StrategyRedirect
	case domain.EnvironmentStandardWeb:
		return dispatch.StrategyEmbedded
	}
	return "pending"
}

func (s *Server) listTorrents(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct {
		Categories []string `json:"categories,omitempty"`
		Names      []string `json:"names,omitempty"`
		Infohashes []string `json:"infohashes,omitempty"`
		Limit      *int     `json:"limit,omitempty"`
		Offset     *int     `json:"offset,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	params := catalog.ListParams{
		Categories: trimAll(args.Categories),
		Names:      trimAll(args.Names),
		Infohashes: trimAll(args.Infohashes),
		Limit:      defaultListLimit,
	}
	if args.Limit != nil {
		if *args.Limit < 1 || *args.Limit > maxListLimit {
			return toolOutput{}, errInvalidParams
		}
		params.Limit = *args.Limit
	}
	if args.Offset != nil {
		if *args.Offset < 0 {
			return toolOutput{}, errInvalidParams
		}
		params.Offset = *args.Offset
	}
	if err := s.requireCatalog(); err != nil {
		return toolOutput{}, err
	}

	resp, err := s.catalog.ListTorrents(ctx, params)
	if err != nil {
		return toolOutput{}, catalog.AsToolError(err)
	}

	text := fmt.Sprintf("Found %d of %d torrent(s).", len(resp.Torrents), resp.Total)
	if len(resp.Torrents) > 0 {
		text += "\n" + formatTorrents(resp.Torrents)
	}
	return toolOutput{text: text, structured: resp}, nil
}

func (s *Server) listVideoFiles(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct {
		Infohash string `json:"infohash"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	infohash := strings.TrimSpace(args.Infohash)
	if infohash == "" {
		return toolOutput{}, errInvalidParams
	}
	if err := s.requireCatalog(); err != nil {
		return toolOutput{}, err
	}

	torrent, err := s.catalog.GetTorrent(ctx, infohash)
	if err != nil {
		return toolOutput{}, catalog.AsToolError(err)
	}
	files := catalog.VideoFiles(torrent)

	text := fmt.Sprintf("%s has %d playable video file(s).", torrent.DisplayTitle(), len(files))
	if len(files) > 0 {
		text += "\n" + formatFiles(files)
	}
	return toolOutput{
		text: text,
		structured: map[string]any{
			"infohash": infohash,
			"title":    torrent.DisplayTitle(),
			"count":    len(files),
			"files":    files,
		},
	}, nil
}

func (s *Server) playStream(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct {
		SourceURL string `json:"source_url"`
		Title     string `json:"title,omitempty"`
		FileName  string `json:"file_name,omitempty"`
		MimeType  string `json:"mime_type,omitempty"`
		AutoPlay  *bool  `json:"auto_play,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	if strings.TrimSpace(args.SourceURL) == "" {
		return toolOutput{}, errInvalidParams
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}

	result, err := s.player.Play(ctx, domain.PlaybackRequest{
		SourceURL:    strings.TrimSpace(args.SourceURL),
		MimeTypeHint: strings.TrimSpace(args.MimeType),
		Title:        strings.TrimSpace(args.Title),
		FileName:     strings.TrimSpace(args.FileName),
		AutoPlay:     autoPlay(args.AutoPlay),
	})
	if err != nil {
		return toolOutput{}, err
	}
	return playOutput(result), nil
}

func (s *Server) playFile(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct {
		Infohash string `json:"infohash"`
		FilePath string `json:"file_path,omitempty"`
		AutoPlay *bool  `json:"auto_play,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	if strings.TrimSpace(args.Infohash) == "" {
		return toolOutput{}, errInvalidParams
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}

	result, err := s.player.PlayFile(ctx, domain.PlayFileRequest{
		Infohash: strings.TrimSpace(args.Infohash),
		FilePath: strings.TrimSpace(args.FilePath),
		AutoPlay: autoPlay(args.AutoPlay),
	})
	if err != nil {
		return toolOutput{}, err
	}
	return playOutput(result), nil
}

func autoPlay(v *bool) bool {
	return v == nil || *v
}

func playOutput(result *domain.PlayResult) toolOutput {
	var text string
	switch {
	case result.State == dispatch.StateAwaitingEnvironment.String():
		text = fmt.Sprintf("Request %s is waiting for host detection.", result.RequestID)
	case result.Strategy == dispatch.StrategyNone:
		text = fmt.Sprintf("Request %s was not played: the stream URL is invalid.", result.RequestID)
	default:
		text = fmt.Sprintf("Request %s handed to %s on %s.", result.RequestID, result.Strategy, result.Environment)
	}
	return toolOutput{text: text, structured: result, requestID: result.RequestID}
}

func (s *Server) playbackStatus(_ context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct{}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}
	status := s.player.Status()
	return toolOutput{text: formatStatus(status), structured: status, requestID: status.RequestID}, nil
}

func (s *Server) playbackControl(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct {
		Action          string   `json:"action"`
		PositionSeconds *float64 `json:"position_seconds,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	action := strings.TrimSpace(args.Action)
	switch action {
	case domain.ControlTogglePause, domain.ControlSeekForward, domain.ControlSeekBackward, domain.ControlExitFullscreen:
	case domain.ControlSeek:
		if args.PositionSeconds == nil || *args.PositionSeconds < 0 {
			return toolOutput{}, errInvalidParams
		}
	default:
		return toolOutput{}, errInvalidParams
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}

	req := domain.ControlRequest{Action: action}
	if args.PositionSeconds != nil {
		req.PositionSeconds = *args.PositionSeconds
	}
	snap, err := s.player.Control(ctx, req)
	if err != nil {
		return toolOutput{}, err
	}
	return toolOutput{
		text:       fmt.Sprintf("Applied %s. %s", action, formatSession(*snap)),
		structured: snap,
	}, nil
}

func (s *Server) stopPlayback(ctx context.Context, raw json.RawMessage) (toolOutput, error) {
	var args struct{}
	if err := decodeArgs(raw, &args); err != nil {
		return toolOutput{}, err
	}
	if err := s.requirePlayer(); err != nil {
		return toolOutput{}, err
	}
	result, err := s.player.Stop(ctx)
	if err != nil {
		return toolOutput{}, err
	}
	return toolOutput{
		text:       fmt.Sprintf("Stopped playback request %s.", result.StoppedRequestID),
		structured: result,
		requestID:  result.StoppedRequestID,
	}, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatTorrents(torrents []catalog.Torrent) string {
	var out strings.Builder
	for i, t := range torrents {
		if i > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%d. %s infohash=%s size=%s files=%d",
			i+1,
			t.DisplayTitle(),
			t.Infohash,
			humanize.Bytes(uint64(max(t.TotalSize, 0))),
			len(t.Files),
		)
	}
	return out.String()
}

func formatFiles(files []catalog.File) string {
	var out strings.Builder
	for i, f := range files {
		if i > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%d. %s path=%s size=%s", i+1, f.Name, f.Path, humanize.Bytes(uint64(max(f.Length, 0))))
	}
	return out.String()
}

func formatStatus(status domain.PlaybackStatus) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Host environment: %s.", status.Environment)
	if status.RequestID == "" {
		out.WriteString(" No active playback request.")
	} else {
		fmt.Fprintf(&out, " Request %s is %s", status.RequestID, status.State)
		if status.Strategy != "" {
			fmt.Fprintf(&out, " via %s", status.Strategy)
		}
		out.WriteByte('.')
	}
	if status.Session != nil {
		out.WriteByte(' ')
		out.WriteString(formatSession(*status.Session))
	}
	if status.LastExit != nil {
		fmt.Fprintf(&out, " Last exit: request %s (%s) %s.",
			status.LastExit.RequestID, status.LastExit.Strategy, humanize.Time(status.LastExit.At))
	}
	return out.String()
}

func formatSession(snap domain.SessionStatus) string {
	state := "paused"
	switch {
	case snap.Closed:
		state = "closed"
	case snap.Buffering:
		state = "buffering"
	case snap.Playing:
		state = "playing"
	}
	return fmt.Sprintf("Session %s at %s / %s.", state, clock(snap.Position), clock(snap.Duration))
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func staticTools() []tool {
	emptyObject := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
	autoPlayProperty := map[string]any{
		"type":        "boolean",
		"default":     true,
		"description": "Start playing as soon as the player opens.",
	}

	return []tool{
		{
			Name:        "probe_environment",
			Description: "Report which host torrplay runs in (native_mobile_app, tv_packaged, tv_browser, standard_web) and which playback strategy that selects. Waits for host detection to finish.",
			Annotations: readOnlyTool,
			InputSchema: emptyObject,
		},
		{
			Name:        "list_torrents",
			Description: "List torrents known to the torrplay backend. Use the infohash from the result with list_video_files or play_file.",
			Annotations: catalogTool,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"categories": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"names":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"infohashes": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"limit": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": maxListLimit,
						"default": defaultListLimit,
					},
					"offset": map[string]any{"type": "integer", "minimum": 0, "default": 0},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        "list_video_files",
			Description: "List the playable video files of one torrent, in natural order.",
			Annotations: catalogTool,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"infohash": map[string]any{"type": "string", "description": "Torrent infohash from list_torrents."},
				},
				"required":             []string{"infohash"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "play_stream",
			Description: "Play an absolute http(s) stream URL using the strategy of the current host. Replaces any active playback request.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_url": map[string]any{"type": "string", "description": "Absolute URL of the stream."},
					"title":      map[string]any{"type": "string"},
					"file_name":  map[string]any{"type": "string", "description": "Original file name, used to infer the media type."},
					"mime_type":  map[string]any{"type": "string", "description": "MIME type hint for TV hand-off."},
					"auto_play":  autoPlayProperty,
				},
				"required":             []string{"source_url"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "play_file",
			Description: "Play a video file of a torrent. file_path may be omitted when the torrent has exactly one video file.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"infohash":  map[string]any{"type": "string"},
					"file_path": map[string]any{"type": "string", "description": "File path from list_video_files."},
					"auto_play": autoPlayProperty,
				},
				"required":             []string{"infohash"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "playback_status",
			Description: "Show the active playback request, its strategy and embedded session state, and the last exit.",
			Annotations: readOnlyTool,
			InputSchema: emptyObject,
		},
		{
			Name:        "playback_control",
			Description: "Control the embedded player: pause/resume, seek, or leave fullscreen (which ends the session).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{
							domain.ControlTogglePause,
							domain.ControlSeek,
							domain.ControlSeekForward,
							domain.ControlSeekBackward,
							domain.ControlExitFullscreen,
						},
					},
					"position_seconds": map[string]any{
						"type":        "number",
						"minimum":     0,
						"description": "Target position, required for seek.",
					},
				},
				"required":             []string{"action"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "stop_playback",
			Description: "Discard the active playback request without returning to the caller, as closing the player dialog does.",
			InputSchema: emptyObject,
		},
	}
}
