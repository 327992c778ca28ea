// Package webos calls TV platform services through luna-send.
package webos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
)

type Bridge struct {
	lunaSendPath string
	run          adapters.CommandRunner
}

func NewBridge(lunaSendPath string, run adapters.CommandRunner) *Bridge {
	if lunaSendPath == "" {
		lunaSendPath = "luna-send"
	}
	if run == nil {
		run = adapters.RunCommand
	}
	return &Bridge{lunaSendPath: lunaSendPath, run: run}
}

type response struct {
	ReturnValue *bool  `json:"returnValue"`
	ErrorCode   any    `json:"errorCode"`
	ErrorText   string `json:"errorText"`
}

// ServiceError is a failure reported by the platform service itself.
type ServiceError struct {
	URI  string
	Code string
	Text string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.URI, e.Text)
	}
	return fmt.Sprintf("%s: %s (code %s)", e.URI, e.Text, e.Code)
}

// Call sends one request and waits for a single reply in the background.
func (b *Bridge) Call(ctx context.Context, req domain.ServiceRequest, onSuccess func(json.RawMessage), onFailure func(error)) {
	params, err := json.Marshal(req.Parameters)
	if err != nil {
		onFailure(fmt.Errorf("encode %s parameters: %w", req.URI(), err))
		return
	}
	go func() {
		out, err := b.run(ctx, b.lunaSendPath, "-n", "1", "-f", req.URI(), string(params))
		if err != nil {
			onFailure(err)
			return
		}
		body, err := parseReply(req.URI(), out)
		if err != nil {
			onFailure(err)
			return
		}
		onSuccess(body)
	}()
}

func parseReply(uri string, out []byte) (json.RawMessage, error) {
	body := bytes.TrimSpace(out)
	// luna-send may print a banner before the JSON reply.
	if i := bytes.IndexByte(body, '{'); i > 0 {
		body = body[i:]
	}
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", uri, err)
	}
	if resp.ReturnValue == nil || !*resp.ReturnValue {
		text := strings.TrimSpace(resp.ErrorText)
		if text == "" {
			text = "service reported failure"
		}
		code := ""
		if resp.ErrorCode != nil {
			code = fmt.Sprint(resp.ErrorCode)
		}
		return nil, &ServiceError{URI: uri, Code: code, Text: text}
	}
	return json.RawMessage(body), nil
}

var _ adapters.ServiceBridge = (*Bridge)(nil)
