// Package environment classifies the host runtime a playback request runs in.
package environment

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/domain"
	tplog "torrplay.app/player/internal/log"
)

// Signals are the feature-detection inputs. Each one is synchronous and must
// not perform network I/O. Nil signals read as absent.
type Signals struct {
	UserAgent       func() (string, error)
	NativeShell     func() bool
	BridgeAvailable func() bool
	// NativeOverride, when set, decides the native shell question ahead of
	// the user agent and NativeShell.
	NativeOverride *bool
}

// Probe classifies the host once per mount.
type Probe struct {
	signals Signals
	logger  zerolog.Logger

	once sync.Once
	env  domain.Environment
}

func NewProbe(signals Signals) *Probe {
	return &Probe{
		signals: signals,
		logger:  tplog.WithComponent("environment"),
	}
}

// Classify runs detection on first use and returns the cached result afterwards.
// It never returns EnvironmentPending.
func (p *Probe) Classify() domain.Environment {
	p.once.Do(func() {
		env, err := p.detect()
		if err != nil {
			p.logger.Warn().Err(err).Msg("environment_probe_failed")
			env = domain.EnvironmentStandardWeb
		}
		p.env = env
		p.logger.Info().Str(tplog.FieldEnvironment, env.String()).Msg("environment_resolved")
	})
	return p.env
}

func (p *Probe) detect() (env domain.Environment, err error) {
	defer func() {
		if r := recover(); r != nil {
			env, err = domain.EnvironmentStandardWeb, fmt.Errorf("probe panic: %v", r)
		}
	}()

	ua := ""
	if p.signals.UserAgent != nil {
		ua, err = p.signals.UserAgent()
		if err != nil {
			return domain.EnvironmentStandardWeb, fmt.Errorf("read user agent: %w", err)
		}
	}

	if IsTVPlatform(ua) {
		if p.signals.BridgeAvailable != nil && p.signals.BridgeAvailable() {
			return domain.EnvironmentTvPackaged, nil
		}
		return domain.EnvironmentTvBrowser, nil
	}
	if p.isNative(ua) {
		return domain.EnvironmentNativeMobileApp, nil
	}
	return domain.EnvironmentStandardWeb, nil
}

func (p *Probe) isNative(ua string) bool {
	if p.signals.NativeOverride != nil {
		return *p.signals.NativeOverride
	}
	return IsNativeShell(ua) || (p.signals.NativeShell != nil && p.signals.NativeShell())
}
