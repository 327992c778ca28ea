// Package mcpserver exposes torrplay playback over a stdio JSON-RPC tool protocol.
package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/catalog"
	"torrplay.app/player/internal/domain"
	tplog "torrplay.app/player/internal/log"
)

const protocolVersion = "2024-11-05"

// Player is the playback surface the tools drive.
type Player interface {
	Environment(ctx context.Context) (domain.Environment, error)
	Play(ctx context.Context, req domain.PlaybackRequest) (*domain.PlayResult, error)
	PlayFile(ctx context.Context, req domain.PlayFileRequest) (*domain.PlayResult, error)
	Status() domain.PlaybackStatus
	Control(ctx context.Context, req domain.ControlRequest) (*domain.SessionStatus, error)
	Stop(ctx context.Context) (*domain.StopResult, error)
}

// Catalog lists what the backend can stream.
type Catalog interface {
	ListTorrents(ctx context.Context, p catalog.ListParams) (catalog.TorrentsResponse, error)
	GetTorrent(ctx context.Context, infohash string) (catalog.Torrent, error)
}

type Server struct {
	in                *bufio.Reader
	out               *bufio.Writer
	serverName        string
	serverVersion     string
	logger            zerolog.Logger
	useJSONLineOutput bool
	outputModeLocked  bool
	tools             []tool
	handlers          map[string]toolHandler
	player            Player
	catalog           Catalog
}

type Config struct {
	ServerName    string
	ServerVersion string
	// Logger defaults to the process logger with component "mcp".
	Logger  *zerolog.Logger
	Player  Player
	Catalog Catalog
}

func New(in io.Reader, out io.Writer, cfg Config) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "torrplay"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	logger := tplog.WithComponent("mcp")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Server{
		in:            bufio.NewReader(in),
		out:           bufio.NewWriter(out),
		serverName:    cfg.ServerName,
		serverVersion: cfg.ServerVersion,
		logger:        logger,
		tools:         staticTools(),
		player:        cfg.Player,
		catalog:       cfg.Catalog,
	}
	s.handlers = s.toolHandlers()
	return s
}

func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("reason", ctx.Err().Error()).Msg("mcp_context_done")
			return ctx.Err()
		default:
		}

		s.logger.Debug().Msg("mcp_read_wait")
		payload, jsonLineInput, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info().Msg("mcp_stream_eof")
				return nil
			}
			s.logger.Error().Err(err).Msg("mcp_read_error")
			return err
		}
		if !s.outputModeLocked {
			s.useJSONLineOutput = jsonLineInput
			s.outputModeLocked = true
			mode := "framed"
			if jsonLineInput {
				mode = "jsonline"
			}
			s.logger.Debug().Str("mode", mode).Msg("mcp_output_mode")
		}
		s.logger.Debug().Int("bytes", len(payload)).Msg("mcp_message_received")

		if err := s.handle(ctx, payload); err != nil {
			s.logger.Error().Err(err).Msg("mcp_handle_error")
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, payload []byte) error {
	startedAt := time.Now()

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logCall("parse", "", startedAt, "-32700")
		return s.send(response{
			JSONRPC: "2.0",
			Error:   &responseError{Code: -32700, Message: "parse error"},
		})
	}

	// Notifications carry no id and get no response.
	if len(req.ID) == 0 {
		return nil
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		s.logCall(req.Method, "", startedAt, "-32600")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &responseError{Code: -32600, Message: "invalid request"},
		})
	}

	switch req.Method {
	case "initialize":
		s.logCall("initialize", "", startedAt, "")
		return s.send(response{JSONRPC: "2.0", ID: req.ID, Result: initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			ServerInfo: map[string]string{
				"name":    s.serverName,
				"version": s.serverVersion,
			},
			Instructions: "Call probe_environment to see how playback will be handed off, then list_torrents and play_file.",
		}})
	case "tools/list":
		s.logCall("tools/list", "", startedAt, "")
		return s.send(response{JSONRPC: "2.0", ID: req.ID, Result: toolsListResult{Tools: s.tools}})
	case "tools/call":
		return s.handleToolCall(ctx, req.ID, req.Params)
	default:
		s.logCall(req.Method, "", startedAt, "-32601")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &responseError{Code: -32601, Message: "method not found"},
		})
	}
}

func (s *Server) handleToolCall(ctx context.Context, id json.RawMessage, rawParams json.RawMessage) error {
	startedAt := time.Now()

	params, err := decodeToolCallParams(rawParams)
	if err != nil {
		return s.sendInvalidParams("tools/call", startedAt, id)
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		s.logCall(params.Name, "", startedAt, "TOOL_NOT_FOUND")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      id,
			Result:  toolErrorResult("TOOL_NOT_FOUND", fmt.Sprintf("unknown tool: %s", params.Name)),
		})
	}

	out, err := handler(ctx, params.Arguments)
	switch {
	case errors.Is(err, errInvalidParams):
		return s.sendInvalidParams(params.Name, startedAt, id)
	case err != nil:
		s.logCall(params.Name, out.requestID, startedAt, toolErrorCode(err))
		return s.send(response{JSONRPC: "2.0", ID: id, Result: toolErrorResultFromError(err)})
	}

	s.logCall(params.Name, out.requestID, startedAt, "")
	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Result: toolCallResult{
			Content:           []toolContent{{Type: "text", Text: out.text}},
			StructuredContent: out.structured,
		},
	})
}

func decodeToolCallParams(raw json.RawMessage) (toolsCallParams, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return toolsCallParams{}, err
	}

	nameRaw, ok := payload["name"]
	if !ok {
		return toolsCallParams{}, fmt.Errorf("missing tool name")
	}

	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil {
		return toolsCallParams{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return toolsCallParams{}, fmt.Errorf("missing tool name")
	}

	// Some clients flatten arguments next to the tool name.
	arguments, ok := payload["arguments"]
	if !ok {
		flattened := map[string]json.RawMessage{}
		for key, value := range payload {
			if key == "name" || key == "_meta" {
				continue
			}
			flattened[key] = value
		}
		if len(flattened) > 0 {
			normalized, err := json.Marshal(flattened)
			if err != nil {
				return toolsCallParams{}, err
			}
			arguments = normalized
		}
	}

	if len(bytes.TrimSpace(arguments)) == 0 || bytes.Equal(bytes.TrimSpace(arguments), []byte("null")) {
		arguments = json.RawMessage("{}")
	}

	return toolsCallParams{Name: name, Arguments: arguments}, nil
}

func decodeStrict(raw json.RawMessage, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("invalid JSON payload")
	}
	var trailing any
	if err := decoder.Decode(&trailing); err != io.EOF {
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

func (s *Server) sendInvalidParams(method string, startedAt time.Time, id json.RawMessage) error {
	s.logCall(method, "", startedAt, "-32602")
	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &responseError{
			Code:    -32602,
			Message: "invalid params",
			Data:    map[string]string{"method": method},
		},
	})
}

func toolErrorResult(code, message string) toolCallResult {
	return toolCallResult{
		Content: []toolContent{{Type: "text", Text: fmt.Sprintf("%s: %s", code, message)}},
		StructuredContent: map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		IsError: true,
	}
}

func toolErrorResultFromError(err error) toolCallResult {
	var tErr *domain.ToolError
	if !errors.As(err, &tErr) || tErr == nil {
		return toolErrorResult(domain.CodeInternalError, err.Error())
	}

	result := toolErrorResult(tErr.Code, tErr.Message)
	errObj := result.StructuredContent.(map[string]any)["error"].(map[string]any)
	if len(tErr.SuggestedFixes) > 0 {
		errObj["suggested_fixes"] = tErr.SuggestedFixes
	}
	if len(tErr.Details) > 0 {
		errObj["details"] = tErr.Details
	}
	return result
}

func toolErrorCode(err error) string {
	var tErr *domain.ToolError
	if errors.As(err, &tErr) && tErr != nil && strings.TrimSpace(tErr.Code) != "" {
		return tErr.Code
	}
	return domain.CodeInternalError
}

func (s *Server) logCall(method, requestID string, startedAt time.Time, errorCode string) {
	event := s.logger.Info()
	if errorCode != "" {
		event = s.logger.Error()
	}
	event.
		Str("method", strings.TrimSpace(method)).
		Str(tplog.FieldRequestID, requestID).
		Int64(tplog.FieldDurationMS, time.Since(startedAt).Milliseconds()).
		Str("error_code", errorCode).
		Msg("mcp_call")
}

func (s *Server) send(resp response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.logger.Debug().Int("bytes", len(encoded)).Msg("mcp_send")
	if s.useJSONLineOutput {
		return writeJSONLineMessage(s.out, encoded)
	}
	return writeFramedMessage(s.out, encoded)
}
