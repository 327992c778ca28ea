// Package diagnostics reports which external playback binaries are installed.
package diagnostics

import (
	"os/exec"
	"strings"

	"torrplay.app/player/internal/config"
)

var lookPath = exec.LookPath

type BinaryStatus struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// DependencyReport lists the binaries behind each playback strategy. The
// redirect strategy needs no binary beyond a system browser.
type DependencyReport struct {
	MPV      BinaryStatus `json:"mpv"`
	AM       BinaryStatus `json:"am"`
	LunaSend BinaryStatus `json:"luna_send"`

	EmbeddedReady bool `json:"embedded_ready"`
	IntentReady   bool `json:"intent_ready"`
	TVReady       bool `json:"tv_ready"`
}

func DetectDependencies(cfg config.Config) DependencyReport {
	mpv := detectBinary(cfg.Player.MPVPath, "mpv")
	am := detectBinary(cfg.Handoff.AMPath, "am")
	luna := detectBinary(cfg.Handoff.LunaSendPath, "luna-send")

	return DependencyReport{
		MPV:           mpv,
		AM:            am,
		LunaSend:      luna,
		EmbeddedReady: mpv.Found,
		IntentReady:   am.Found,
		TVReady:       luna.Found,
	}
}

func detectBinary(configured, fallback string) BinaryStatus {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = fallback
	}
	path, err := lookPath(name)
	if err != nil {
		return BinaryStatus{Name: name}
	}
	return BinaryStatus{Name: name, Found: true, Path: path}
}
