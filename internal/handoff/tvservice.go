package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/mediatype"
)

const (
	StrategyTVService = "tv_media_service"

	ApplicationManager = "luna://com.webos.applicationManager"
	MethodLaunch       = "launch"

	dlnaProtocolFlags = "DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=01700000000000000000000000000000"
	dlnaFlagVal       = 4096
	dlnaOpVal         = 1
	unknownLength     = "-1"
	unknownPosition   = -1
)

// TVService launches the platform's media-discovery app with the stream.
type TVService struct {
	bridge adapters.ServiceBridge
	appID  string
}

func NewTVService(bridge adapters.ServiceBridge, appID string) *TVService {
	return &TVService{bridge: bridge, appID: appID}
}

func (a *TVService) Name() string { return StrategyTVService }

// SettleDelay is zero: the bridge callback already follows the app switch.
func (a *TVService) SettleDelay() time.Duration { return 0 }

// BuildMediaPayload describes req for the media-discovery app.
func BuildMediaPayload(req domain.PlaybackRequest) domain.MediaPayload {
	fileName := strings.TrimSpace(req.Title)
	if fileName == "" {
		fileName = " "
	}
	return domain.MediaPayload{
		FullPath:         strings.TrimSpace(req.SourceURL),
		FileName:         fileName,
		MediaType:        "VIDEO",
		DeviceType:       "DMR",
		LastPlayPosition: unknownPosition,
		DLNAInfo: domain.DLNAInfo{
			FlagVal:       dlnaFlagVal,
			CleartextSize: unknownLength,
			ContentLength: unknownLength,
			OpVal:         dlnaOpVal,
			ProtocolInfo:  fmt.Sprintf("http-get:*:%s:%s", payloadMimeType(req), dlnaProtocolFlags),
			Duration:      0,
		},
	}
}

func payloadMimeType(req domain.PlaybackRequest) string {
	if hint := strings.TrimSpace(req.MimeTypeHint); hint != "" {
		return hint
	}
	if natural := mediatype.Natural(req.DisplayName()); natural != "" {
		return natural
	}
	return mediatype.AnyVideo
}

// BuildLaunchRequest wraps the payload in the application-manager launch call.
func (a *TVService) BuildLaunchRequest(req domain.PlaybackRequest) domain.ServiceRequest {
	return domain.ServiceRequest{
		Service: ApplicationManager,
		Method:  MethodLaunch,
		Parameters: domain.LaunchParams{
			ID: a.appID,
			Params: domain.LaunchPayload{
				Payload: []domain.MediaPayload{BuildMediaPayload(req)},
			},
		},
	}
}

func (a *TVService) Handoff(ctx context.Context, req domain.PlaybackRequest) *Completion {
	c := NewCompletion()
	launch := a.BuildLaunchRequest(req)
	func() {
		defer rejectPanic(c, StrategyTVService)
		a.bridge.Call(ctx, launch,
			func(json.RawMessage) { c.Resolve() },
			func(err error) { c.Reject(err) },
		)
	}()
	return c
}
