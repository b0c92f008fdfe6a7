// Command dealsgw serves the deals cache over HTTP in front of the deals backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/dealscache"
	"github.com/unkn0wn-root/dealscache/config"
	"github.com/unkn0wn-root/dealscache/gateway"
	asynchook "github.com/unkn0wn-root/dealscache/hooks/async"
	"github.com/unkn0wn-root/dealscache/internal/warmup"
	zaplog "github.com/unkn0wn-root/dealscache/log/zap"
	"github.com/unkn0wn-root/dealscache/sloghooks"
	"github.com/unkn0wn-root/dealscache/upstream"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "dealsgw:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	zl, err := newZap(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	log := zaplog.New(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := cfg.Provider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close(context.Background()) }()

	client, err := upstream.New(cfg.Upstream.BaseURL, upstream.Options{
		Timeout:   cfg.Upstream.Timeout,
		UserAgent: cfg.Upstream.UserAgent,
	})
	if err != nil {
		return err
	}

	hooks := asynchook.New(sloghooks.New(newSlog(cfg.Log), sloghooks.Options{
		HitEvery:      100,
		MissEvery:     10,
		CoalesceEvery: 10,
	}), 1, 1024)
	defer hooks.Close()

	opts := cfg.Options()
	opts.Provider = provider
	opts.Logger = log
	opts.Hooks = hooks
	dc, err := dealscache.New(client, opts)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close(context.Background()) }()

	sched, err := warmup.New(dc, cfg.Warmup, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           gateway.New(dc, gateway.Options{Logger: log}),
		ReadHeaderTimeout: cfg.Upstream.Timeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", dealscache.Fields{"addr": cfg.Listen, "provider": cfg.Cache.Provider})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		log.Info("shutting down", nil)
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), sched.Stop(sctx))
	})
	return g.Wait()
}

func newZap(c config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newSlog(c config.Log) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Level))
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "console" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
