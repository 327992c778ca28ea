package domain

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidRequest marks a playback request that can never be dispatched.
var ErrInvalidRequest = errors.New("invalid playback request")

// PlaybackRequest is the immutable value a caller hands to the dispatcher.
type PlaybackRequest struct {
	ID           string `json:"id,omitempty"`
	SourceURL    string `json:"source_url"`
	MimeTypeHint string `json:"mime_type_hint,omitempty"`
	Title        string `json:"title,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	AutoPlay     bool   `json:"auto_play"`
}

// Validate reports ErrInvalidRequest when SourceURL is empty or not an absolute URL.
func (r PlaybackRequest) Validate() error {
	raw := strings.TrimSpace(r.SourceURL)
	if raw == "" {
		return fmt.Errorf("%w: source url is empty", ErrInvalidRequest)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: source url %q is not absolute", ErrInvalidRequest, raw)
	}
	return nil
}

// DisplayName is the best name available for the played file: FileName, then
// Title, then the filepath query parameter or last path element of SourceURL.
func (r PlaybackRequest) DisplayName() string {
	if name := strings.TrimSpace(r.FileName); name != "" {
		return name
	}
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	parsed, err := url.Parse(strings.TrimSpace(r.SourceURL))
	if err != nil {
		return ""
	}
	if fp := parsed.Query().Get("filepath"); fp != "" {
		return path.Base(fp)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
