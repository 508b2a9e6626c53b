// Package main is the Relay backend daemon: loads configuration, wires
// the document store, the manager, and the HTTP surface, then serves
// until a signal asks it to stop. Grounded on the teacher's daemon
// bootstrap shape (cmd/authn/main.go: flag/env config load, a signal
// handler installed before work starts, a periodic log-flush
// goroutine, fatal errors exit the process after flushing the log).
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RibbonsAlmark/Relay/config"
	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
	"github.com/RibbonsAlmark/Relay/docstore/mongostore"
	"github.com/RibbonsAlmark/Relay/httpapi"
	"github.com/RibbonsAlmark/Relay/manager"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/sysload"
	"github.com/RibbonsAlmark/Relay/vizstream"
	"github.com/RibbonsAlmark/Relay/vizstream/localstream"
)

var printVersion bool

func init() {
	flag.BoolVar(&printVersion, "version", false, "print version and exit")
}

const version = "0.1.0"

func main() {
	flag.Parse()
	if printVersion {
		fmt.Printf("relayd version %s\n", version)
		os.Exit(0)
	}

	cfg := config.FromEnv()
	if cfg.LogDir != "" {
		relog.SetOutputDir(cfg.LogDir, "relayd")
	}
	relog.SetLevel(cfg.LogLevel)
	go logFlushLoop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		relog.Errorf("relayd: failed to open document store: %v", err)
		relog.Flush()
		os.Exit(1)
	}
	defer closeStore()

	sampler := sysload.NewProcSampler()
	mgr := manager.New(cfg, store, sampler, func() vizstream.Stream { return localstream.New() })

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BackendIP, cfg.BackendPort),
		Handler: httpapi.NewServer(cfg, mgr, store),
	}

	go mgr.Run(ctx)

	serveErrCh := make(chan error, 1)
	go func() {
		relog.Infof("relayd: listening on %s", srv.Addr)
		serveErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		relog.Infof("relayd: shutdown signal received")
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			relog.Errorf("relayd: listen failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		relog.Warningf("relayd: graceful shutdown failed: %v", err)
	}
	mgr.Stop()
	relog.Flush()
}

// openStore dials Mongo when MONGO_URI is configured, matching the
// teacher's pattern of an external DB being the production default
// with a lightweight in-process fallback for local runs. A bare
// MemStore is only ever used when no URI is set, so a misconfigured
// production deployment fails loudly via the Dial error instead of
// silently running in-memory.
func openStore(ctx context.Context, cfg *config.Config) (docstore.DocumentSource, func(), error) {
	if cfg.MongoURI == "" {
		relog.Warningf("relayd: MONGO_URI not set, falling back to an in-memory document store")
		return memstore.New(), func() {}, nil
	}
	store, err := mongostore.Dial(ctx, cfg.MongoURI, cfg.MongoAppUser, cfg.MongoAppPass)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			relog.Warningf("relayd: mongostore close failed: %v", err)
		}
	}, nil
}

func logFlushLoop() {
	for {
		time.Sleep(time.Minute)
		relog.Flush()
	}
}
