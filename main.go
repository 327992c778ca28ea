package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"torrplay.app/player/internal/adapters"
	"torrplay.app/player/internal/adapters/android"
	"torrplay.app/player/internal/adapters/browser"
	"torrplay.app/player/internal/adapters/mpv"
	"torrplay.app/player/internal/adapters/webos"
	"torrplay.app/player/internal/buildinfo"
	"torrplay.app/player/internal/catalog"
	"torrplay.app/player/internal/config"
	"torrplay.app/player/internal/diagnostics"
	"torrplay.app/player/internal/dispatch"
	"torrplay.app/player/internal/embedded"
	"torrplay.app/player/internal/environment"
	"torrplay.app/player/internal/handoff"
	"torrplay.app/player/internal/lifecycle"
	tplog "torrplay.app/player/internal/log"
	"torrplay.app/player/internal/mcpserver"
	"torrplay.app/player/internal/opsserver"
	"torrplay.app/player/internal/playback"
	"torrplay.app/player/internal/telemetry"
)

const serviceName = "torrplay"

type selfTestOutput struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Commit  string `json:"commit"`
	} `json:"server"`
	Environment string `json:"environment"`
	Catalog     struct {
		Configured bool   `json:"configured"`
		BaseURL    string `json:"base_url,omitempty"`
	} `json:"catalog"`
	Dependencies diagnostics.DependencyReport `json:"dependencies"`
}

// adapterBundle wires the platform adapters behind each playback strategy.
type adapterBundle struct {
	options dispatch.Options
	engine  *mpv.Engine
}

func newAdapterBundle(cfg config.Config) (adapterBundle, error) {
	engine := mpv.New(mpv.Config{
		Path:      cfg.Player.MPVPath,
		Socket:    cfg.Player.IPCSocket,
		ExtraArgs: cfg.Player.ExtraArgs,
	})
	controller, err := embedded.NewController(engine, cfg.Player.SeekStep)
	if err != nil {
		return adapterBundle{}, err
	}

	return adapterBundle{
		options: dispatch.Options{
			Intent:    handoff.NewIntent(android.NewLauncher(cfg.Handoff.AMPath, adapters.RunCommand), cfg.Handoff.IntentSettle),
			TVService: handoff.NewTVService(webos.NewBridge(cfg.Handoff.LunaSendPath, adapters.RunCommand), cfg.Handoff.TVAppID),
			Redirect:  handoff.NewRedirect(browser.NewNavigator(), cfg.Handoff.RedirectSettle),
			Embedded:  controller,
		},
		engine: engine,
	}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file (default $"+config.EnvConfigPath+")")
	selfTest := flag.Bool("self-test", false, "run dependency and wiring diagnostics then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return nil
	}

	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	tplog.Configure(tplog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: buildinfo.Version,
	})
	logger := tplog.WithComponent("main")

	probe := environment.NewProbe(environment.HostSignals(cfg))
	client := catalog.NewClient(catalog.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		RetryMax: cfg.API.RetryMax,
	})

	if *selfTest {
		var out selfTestOutput
		out.Server.Name = serviceName
		out.Server.Version = buildinfo.Version
		out.Server.Commit = buildinfo.Commit
		out.Environment = probe.Classify().String()
		out.Catalog.Configured = client.Configured()
		out.Catalog.BaseURL = client.BaseURL()
		out.Dependencies = diagnostics.DetectDependencies(cfg)

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	runCtx, stopSignals := lifecycle.SignalContext(context.Background())
	defer stopSignals()

	shutdownTracing, err := telemetry.Init(runCtx, serviceName, buildinfo.Version, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	bundle, err := newAdapterBundle(cfg)
	if err != nil {
		return err
	}
	manager := playback.NewManager(probe, client, bundle.options)
	manager.Mount()

	logger.Info().
		Str("log_level", cfg.Log.Level).
		Bool("catalog_configured", client.Configured()).
		Str("metrics_listen", cfg.Metrics.Listen).
		Msg("mcp_server_start")

	g, gctx := errgroup.WithContext(runCtx)
	if cfg.Metrics.Listen != "" {
		ops := opsserver.New(cfg.Metrics.Listen, opsserver.NewRouter(manager))
		g.Go(func() error { return ops.Run(gctx) })
	}

	srv := mcpserver.New(os.Stdin, os.Stdout, mcpserver.Config{
		ServerName:    serviceName,
		ServerVersion: buildinfo.Version,
		Player:        manager,
		Catalog:       client,
	})
	// Run blocks on stdin, so it is not joined to the group.
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- srv.Run(gctx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case <-gctx.Done():
		runErr = gctx.Err()
	}
	if runErr != nil {
		logger.Warn().Str("reason", runErr.Error()).Msg("mcp_server_stopping")
	} else {
		logger.Info().Str("reason", "clean_eof").Msg("mcp_server_stopping")
	}
	stopSignals()
	opsErr := g.Wait()

	shutdownCtx, cancelShutdown := lifecycle.ShutdownContext(runCtx, lifecycle.DefaultShutdownTimeout)
	defer cancelShutdown()

	var errs []error
	if err := manager.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close playback: %w", err))
	}
	if err := bundle.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close mpv: %w", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if opsErr != nil && !errors.Is(opsErr, context.Canceled) {
		errs = append(errs, opsErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = append(errs, runErr)
	}
	return errors.Join(errs...)
}
