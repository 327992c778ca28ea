package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigate(t *testing.T) {
	var opened []string
	n := &Navigator{open: func(u string) error {
		opened = append(opened, u)
		return nil
	}}

	require.NoError(t, n.Navigate(context.Background(), " http://host/api/v1/stream/abc?filepath=a%20b.mp4 "))
	assert.Equal(t, []string{"http://host/api/v1/stream/abc?filepath=a%20b.mp4"}, opened)

	assert.Error(t, n.Navigate(context.Background(), "file:///etc/passwd"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Navigate(ctx, "http://host/s"), context.Canceled)
	assert.Len(t, opened, 1)
}

func TestNavigatePropagatesOpenError(t *testing.T) {
	n := &Navigator{open: func(string) error { return errors.New("xdg-open missing") }}
	assert.EqualError(t, n.Navigate(context.Background(), "https://host/s"), "xdg-open missing")
}
