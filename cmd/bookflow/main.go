package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appconfig "bookflow/config"
	"bookflow/internal/bookwatch"
	"bookflow/internal/validate"
	"bookflow/logger"
	"bookflow/reader/hyperliquid"
	"bookflow/reader/paradex"
	"bookflow/render"
)

const shutdownGrace = 500 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	cfg, err := appconfig.LoadConfig(appconfig.DefaultPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 2
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 2
	}

	log.WithFields(logger.Fields{
		"service":    cfg.Bookflow.Name,
		"version":    cfg.Bookflow.Version,
		"hl_symbol":  cfg.Pair.HLSymbol,
		"pdx_symbol": cfg.Pair.PDXSymbol,
	}).Info("starting bookflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Validate both symbols against the venue REST inventories before any
	// WebSocket is opened.
	vctx, vcancel := context.WithTimeout(ctx, cfg.Validation.Timeout.Std())
	err = validate.New(cfg).Symbols(vctx)
	vcancel()
	if err != nil {
		log.WithError(err).Error("symbol validation failed")
		return 2
	}

	pair := bookwatch.NewPair(cfg.Pair.HLSymbol, cfg.Pair.PDXSymbol)

	hlReader := hyperliquid.NewReader(cfg, pair.HL)
	pdxReader := paradex.NewReader(cfg, pair.PDX)

	if err := hlReader.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start hyperliquid reader")
		return 1
	}
	if err := pdxReader.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start paradex reader")
		return 1
	}

	// Shutdown on SIGINT/SIGTERM or quit key; all tasks observe ctx.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return render.Run(gctx, cfg, pair, render.NewANSIRenderer(), render.PollInput())
	})

	exitCode := 0
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.WithError(err).Error("runtime error")
		exitCode = 1
	}
	cancel()

	stopped := make(chan struct{})
	go func() {
		hlReader.Stop()
		pdxReader.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		log.Warn("feed tasks did not stop within grace period")
	}

	log.Info("bookflow stopped")
	return exitCode
}
