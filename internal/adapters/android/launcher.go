// Package android submits view intents through the activity manager CLI.
package android

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/domain"
)

type Launcher struct {
	amPath string
	run    adapters.CommandRunner
}

func NewLauncher(amPath string, run adapters.CommandRunner) *Launcher {
	if amPath == "" {
		amPath = "am"
	}
	if run == nil {
		run = adapters.RunCommand
	}
	return &Launcher{amPath: amPath, run: run}
}

// Args renders intent as `am start` arguments. Extras are emitted in key order.
func Args(intent domain.Intent) []string {
	args := []string{"start", "-a", intent.Action, "-d", intent.Data}
	if intent.Type != "" {
		args = append(args, "-t", intent.Type)
	}
	keys := make([]string, 0, len(intent.Extra))
	for k := range intent.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--es", k, intent.Extra[k])
	}
	return args
}

// StartActivity returns once am has accepted or rejected the intent. am exits
// zero on some resolution failures, so its output is checked as well.
func (l *Launcher) StartActivity(ctx context.Context, intent domain.Intent) error {
	out, err := l.run(ctx, l.amPath, Args(intent)...)
	if err != nil {
		return err
	}
	if msg := errorLine(out); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func errorLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Error") || strings.HasPrefix(line, "Exception") {
			return line
		}
	}
	return ""
}

var _ adapters.IntentLauncher = (*Launcher)(nil)
