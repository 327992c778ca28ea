package handoff

import (
	"context"
	"strings"
	"time"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
)

const StrategyRedirect = "browser_redirect"

// Redirect navigates the browsing context straight to the stream.
type Redirect struct {
	navigator adapters.Navigator
	settle    time.Duration
}

func NewRedirect(navigator adapters.Navigator, settle time.Duration) *Redirect {
	return &Redirect{navigator: navigator, settle: settle}
}

func (a *Redirect) Name() string               { return StrategyRedirect }
func (a *Redirect) SettleDelay() time.Duration { return a.settle }

func (a *Redirect) Handoff(ctx context.Context, req domain.PlaybackRequest) *Completion {
	c := NewCompletion()
	target := strings.TrimSpace(req.SourceURL)
	go func() {
		defer rejectPanic(c, StrategyRedirect)
		if err := a.navigator.Navigate(ctx, target); err != nil {
			c.Reject(err)
			return
		}
		c.Resolve()
	}()
	return c
}

var (
	_ Adapter = (*Intent)(nil)
	_ Adapter = (*TVService)(nil)
	_ Adapter = (*Redirect)(nil)
)
