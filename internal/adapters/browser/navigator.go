// Package browser opens stream URLs in the host's default browser.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/browser"

	"torrplay.app/player/internal/adapters"
)

func init() {
	// stdout is reserved for the MCP stream.
	browser.Stdout = os.Stderr
}

type Navigator struct {
	open func(string) error
}

func NewNavigator() *Navigator {
	return &Navigator{open: browser.OpenURL}
}

func (n *Navigator) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("navigate: unsupported scheme %q", parsed.Scheme)
	}
	return n.open(parsed.String())
}

var _ adapters.Navigator = (*Navigator)(nil)
