package handoff

import (
	"context"
	"strings"
	"time"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/mediatype"
)

const (
	StrategyIntent = "mobile_intent"

	extraAndroidTitle = "android.intent.extra.TITLE"
	extraTitle        = "title"
)

// Intent hands playback to whichever app the OS resolves for a VIEW intent.
type Intent struct {
	launcher adapters.IntentLauncher
	settle   time.Duration
}

func NewIntent(launcher adapters.IntentLauncher, settle time.Duration) *Intent {
	return &Intent{launcher: launcher, settle: settle}
}

func (a *Intent) Name() string               { return StrategyIntent }
func (a *Intent) SettleDelay() time.Duration { return a.settle }

// BuildIntent maps a request onto the VIEW intent payload.
func BuildIntent(req domain.PlaybackRequest) domain.Intent {
	mimeType := strings.TrimSpace(req.MimeTypeHint)
	if mimeType == "" {
		mimeType = mediatype.AnyVideo
	}
	intent := domain.Intent{
		Action: domain.ActionView,
		Data:   strings.TrimSpace(req.SourceURL),
		Type:   mimeType,
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		intent.Extra = map[string]string{
			extraAndroidTitle: title,
			extraTitle:        title,
		}
	}
	return intent
}

func (a *Intent) Handoff(ctx context.Context, req domain.PlaybackRequest) *Completion {
	c := NewCompletion()
	intent := BuildIntent(req)
	go func() {
		defer rejectPanic(c, StrategyIntent)
		if err := a.launcher.StartActivity(ctx, intent); err != nil {
			c.Reject(err)
			return
		}
		c.Resolve()
	}()
	return c
}
