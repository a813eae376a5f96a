package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto_go/internal/app"
	"crypto_go/internal/engine"
	"crypto_go/internal/storage"

	_ "net/http/pprof" // profiling handlers, served on the metrics listen address
)

func main() {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(nil); err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := bootstrap.Config.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			slog.Info("metrics server started", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	unsub := bootstrap.Engine.Subscribe(func(snap engine.Snapshot) {
		if bootstrap.Snapshot == nil {
			return
		}
		s := storage.CreateSnapshot(0, bootstrap.Config.Strategy.Symbol, snap.Position, snap.OpenOrders, snap.SessionVolume.String())
		if err := bootstrap.Snapshot.Save(s); err != nil {
			slog.Warn("snapshot save failed", slog.Any("error", err))
		}
	})
	defer unsub()

	slog.InfoContext(ctx, "engine starting", slog.String("symbol", bootstrap.Config.Strategy.Symbol), slog.String("mode", bootstrap.Config.Trading.Mode))
	if err := bootstrap.Engine.Run(ctx); err != nil {
		slog.Error("engine exited with error", slog.Any("error", err))
	}

	slog.InfoContext(ctx, "shutting down")
}
