// Relay: signaling server entry point.
//
// Peers register here by client id over WebSocket (/ws/webrtc?uid=...) and
// exchange call-control and negotiation messages through it. Media never
// passes through the relay.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/1ureka/peercall/internal/config"
	"github.com/1ureka/peercall/internal/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadRelay()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	iceJSON := flag.String("ice", "", "ICE servers handed to clients, as a JSON array (overrides "+config.EnvICEServers+")")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.IntVar(&cfg.SendBuffer, "buffer", cfg.SendBuffer, "Per-client outbound queue length")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	if *iceJSON != "" {
		servers, err := config.ParseICEServers(*iceJSON)
		if err != nil {
			logrus.WithError(err).Fatal("invalid -ice")
		}
		cfg.ICEServers = servers
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	srv := relay.New(
		relay.WithLogger(logrus.StandardLogger()),
		relay.WithICEServers(cfg.ICEServers),
		relay.WithSendBuffer(cfg.SendBuffer),
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Addr) }()

	select {
	case err := <-errc:
		if err != nil {
			logrus.WithError(err).Fatal("relay failed")
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("unclean shutdown")
	}
}
