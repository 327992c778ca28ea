package mpv

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSocketPath is a per-process IPC socket under the temp dir.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("torrplay-mpv-%d.sock", os.Getpid()))
}

// dialSocket connects over TCP when path looks like host:port, else over a unix socket.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	if strings.Contains(path, ":") && !strings.HasPrefix(path, "/") {
		return d.DialContext(ctx, "tcp", path)
	}
	return d.DialContext(ctx, "unix", path)
}

func cleanupSocket(path string) {
	if strings.Contains(path, ":") && !strings.HasPrefix(path, "/") {
		return
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}
