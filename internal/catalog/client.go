// Package catalog talks to the torrent backend's HTTP API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/metrics"
)

var ErrNotConfigured = errors.New("API URL is not configured")

const maxBodyBytes = 8 << 20

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string { return e.Message }

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(cfg Config) *Client {
	transport := cleanhttp.DefaultPooledTransport()
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{tplog.WithComponent("catalog")}
	rc.ErrorHandler = keepLastResponse

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    rc,
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListTorrents(ctx context.Context, p ListParams) (TorrentsResponse, error) {
	q := url.Values{}
	for _, v := range p.Categories {
		q.Add("categories", v)
	}
	for _, v := range p.Infohashes {
		q.Add("infohashes", v)
	}
	for _, v := range p.Names {
		q.Add("names", v)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	path := "/api/v1/torrents"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out TorrentsResponse
	err := c.get(ctx, "list_torrents", path, &out)
	return out, err
}

func (c *Client) GetTorrent(ctx context.Context, infohash string) (Torrent, error) {
	var out Torrent
	err := c.get(ctx, "get_torrent", "/api/v1/torrents/"+url.PathEscape(strings.TrimSpace(infohash)), &out)
	return out, err
}

func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var out SystemInfo
	err := c.get(ctx, "system_info", "/api/system/info", &out)
	return out, err
}

// StreamURL is the absolute URL serving path inside the torrent infohash.
func (c *Client) StreamURL(infohash, path string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	return c.baseURL + "/api/v1/stream/" + url.PathEscape(strings.TrimSpace(infohash)) +
		"?filepath=" + EncodeURIComponent(path), nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, out any) (err error) {
	if !c.Configured() {
		return ErrNotConfigured
	}
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.RecordCatalogRequest(endpoint, outcome)
	}()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, body)
	}
	if resp.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}

func statusError(resp *http.Response, body []byte) *StatusError {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: eb.Message}
		}
		if eb.Detail != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: eb.Detail}
		}
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// keepLastResponse hands the final non-2xx reply back so its error body can be
// decoded instead of retryablehttp's generic "giving up" error.
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// EncodeURIComponent escapes s the way browsers do for a single URI
// component: everything except A-Z a-z 0-9 and -_.!~*'() is percent-encoded.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if unreservedComponent(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0x0f])
	}
	return b.String()
}

func unreservedComponent(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", ch) >= 0
}

// leveledLogger routes retryablehttp's logging into zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.logger.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.logger.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.logger.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.logger.Debug().Fields(kv).Msg(msg) }

var _ retryablehttp.LeveledLogger = leveledLogger{}
