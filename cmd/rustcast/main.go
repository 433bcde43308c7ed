// Command rustcast runs the broadcast relay server: it accepts one
// configuration file path, starts listening, and serves SOURCE uploads and
// listener/metadata requests until terminated.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mntlake/rustcast/internal/config"
	"github.com/mntlake/rustcast/internal/hooks"
	"github.com/mntlake/rustcast/internal/httpapi"
	"github.com/mntlake/rustcast/internal/pipeline"
	"github.com/mntlake/rustcast/internal/registry"
	"github.com/mntlake/rustcast/internal/rlog"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: rustcast <config-path>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "rustcast: %v\n", err)
		os.Exit(1)
	}

	reg := registry.New()
	hookClient := hooks.New(cfg.HooksConfig())

	router := &httpapi.Router{
		Registry: reg,
		Pipeline: &pipeline.Pipeline{
			Registry: reg,
			Hooks:    hookClient,
			DumpPath: cfg.StreamDump,
		},
		Hooks:             hookClient,
		SessionCookieName: cfg.SessionCookie,
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		rlog.Info("listening", rlog.F("addr", cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rlog.Error("server stopped unexpectedly", rlog.F("error", err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	rlog.Info("shutting down")
	if err := srv.Close(); err != nil {
		rlog.Error("shutdown error", rlog.F("error", err))
	}
}
