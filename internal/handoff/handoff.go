// Package handoff transfers playback to facilities outside the embedded player.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"torrplay.app/player/internal/domain"
)

var ErrRejected = errors.New("hand-off rejected")

// Adapter is one external hand-off strategy. Handoff must not block past
// submitting the request; the returned completion settles when the external
// facility accepts or rejects it.
type Adapter interface {
	Name() string
	Handoff(ctx context.Context, req domain.PlaybackRequest) *Completion
	// SettleDelay is how long to wait after acceptance before returning to the caller.
	SettleDelay() time.Duration
}

// rejectPanic converts a panic inside fn into a rejected completion.
func rejectPanic(c *Completion, name string) {
	if r := recover(); r != nil {
		c.Reject(fmt.Errorf("%s adapter panic: %v", name, r))
	}
}
