package diagnostics

import (
	"errors"
	"testing"

	"torrplay.app/player/internal/config"
)

func TestDetectDependencies(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() {
		lookPath = orig
	})

	lookPath = func(file string) (string, error) {
		switch file {
		case "/opt/mpv/bin/mpv":
			return "/opt/mpv/bin/mpv", nil
		case "luna-send":
			return "/usr/bin/luna-send", nil
		default:
			return "", errors.New("not found")
		}
	}

	cfg := config.Default()
	cfg.Player.MPVPath = "/opt/mpv/bin/mpv"
	cfg.Handoff.AMPath = ""

	report := DetectDependencies(cfg)
	if !report.MPV.Found || !report.EmbeddedReady {
		t.Fatal("expected mpv to be found")
	}
	if report.MPV.Path != "/opt/mpv/bin/mpv" {
		t.Fatalf("unexpected mpv path: %s", report.MPV.Path)
	}
	if report.AM.Found || report.IntentReady {
		t.Fatal("expected am to be missing")
	}
	if report.AM.Name != "am" {
		t.Fatalf("expected fallback name am, got %q", report.AM.Name)
	}
	if !report.TVReady || report.LunaSend.Path != "/usr/bin/luna-send" {
		t.Fatalf("unexpected luna-send status: %+v", report.LunaSend)
	}
}
