package environment

import (
	"os"
	"os/exec"
	"strings"

	"torrplay.app/player/internal/config"
)

// webOSUserAgent is reported when running on a webOS device without an explicit UA.
const webOSUserAgent = "Mozilla/5.0 (Web0S; Linux/SmartTV) AppleWebKit/537.36 (KHTML, like Gecko)"

var (
	lookPath = exec.LookPath
	statFile = os.Stat
	getenv   = os.Getenv
)

const starfishRelease = "/etc/starfish-release"

// HostSignals builds probe signals for the current process from config and
// local feature detection.
func HostSignals(cfg config.Config) Signals {
	return Signals{
		UserAgent: func() (string, error) {
			if ua := strings.TrimSpace(cfg.Host.UserAgent); ua != "" {
				return ua, nil
			}
			if _, err := statFile(starfishRelease); err == nil {
				return webOSUserAgent, nil
			}
			return "", nil
		},
		NativeShell: func() bool {
			return getenv("ANDROID_ROOT") != "" && onPath(cfg.Handoff.AMPath)
		},
		BridgeAvailable: func() bool {
			if cfg.Host.TVBridge != nil {
				return *cfg.Host.TVBridge
			}
			return onPath(cfg.Handoff.LunaSendPath)
		},
		NativeOverride: cfg.Host.Native,
	}
}

func onPath(binary string) bool {
	if strings.TrimSpace(binary) == "" {
		return false
	}
	_, err := lookPath(binary)
	return err == nil
}
