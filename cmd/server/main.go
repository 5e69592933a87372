// Package main provides the entry point for the inkbroker server, the
// authentication and AI-proxy backend for the Inkdesk desktop writing
// application. It brokers GitHub and OpenAI OAuth logins, mints session
// tokens, and proxies AI completion requests for authenticated users.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/inkdesk/inkbroker/internal/api"
	"github.com/inkdesk/inkbroker/internal/broker"
	"github.com/inkdesk/inkbroker/internal/buildinfo"
	"github.com/inkdesk/inkbroker/internal/config"
	"github.com/inkdesk/inkbroker/internal/logging"
	"github.com/inkdesk/inkbroker/internal/proxy"
	"github.com/inkdesk/inkbroker/internal/store"
)

func main() {
	var envFile string
	flag.StringVar(&envFile, "env", ".env", "Path to env file (optional)")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logging.Setup(cfg.Debug)
	if cfg.LogDir != "" {
		if err = logging.EnableFileOutput(cfg.LogDir); err != nil {
			log.Warnf("file logging disabled: %v", err)
		}
	}

	log.Infof("inkbroker version %s, commit %s, built %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
	if cfg.GitHubClientID == "" {
		log.Warn("GITHUB_CLIENT_ID is not set; GitHub login will fail")
	}

	creds := store.NewMemoryCredentialStore()
	b := broker.New(cfg, creds)
	p := proxy.New(creds, b.OpenAI())
	server := api.New(cfg, b, p)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = server.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
	log.Info("shutdown complete")
}
