// Peercall: CLI entry point.
//
// This tool places one-to-one video calls between peers registered on a
// signaling relay. Call setup goes through the relay over WebSocket; media
// flows directly between the peers over WebRTC.
//
// Settings come from the environment (PEERCALL_*, optionally from .env) and
// can be overridden with flags (-url, -id, -stats, -debug).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/1ureka/peercall/internal/config"
	"github.com/1ureka/peercall/internal/coordinator"
	"github.com/1ureka/peercall/internal/transport"
	"github.com/1ureka/peercall/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadClient()
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	// CLI flags, defaulting to the environment.
	flag.StringVar(&cfg.SignalURL, "url", cfg.SignalURL, "Signaling relay WebSocket URL")
	flag.StringVar(&cfg.ClientID, "id", cfg.ClientID, "Client id to register as (random when empty)")
	flag.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "Interval of the transport summary during a call, 0 to disable")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Peercall v%s", version))
	pterm.Println()

	engine, err := transport.NewEngine()
	if err != nil {
		util.LogError("failed to create media engine: %v", err)
		os.Exit(1)
	}

	ui := newTerminalUI()
	core := coordinator.New(ui, engine)
	if err := core.Initialize(); err != nil {
		util.LogError("failed to start: %v", err)
		os.Exit(1)
	}
	defer core.Shutdown()

	// A failed first dial is retried in the background; keep going.
	if err := core.ConnectToSignalServer(ctx, cfg.SignalURL, cfg.ClientID); err != nil {
		util.LogWarning("signaling server not reachable yet: %v", err)
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval, core.GetLatestRtcStats)
	printHelp()

	sh := &shell{core: core, ui: ui, url: cfg.SignalURL, id: cfg.ClientID}
	sh.run(ctx, os.Stdin)

	util.LogInfo("bye")
}
