// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kota/internal/config"
	httptransport "kota/internal/http"
	"kota/internal/infra"
	"kota/internal/logging"
	"kota/internal/modules/catalog"
	"kota/internal/modules/geo"
	"kota/internal/modules/ledger"
	"kota/internal/modules/order"
	"kota/internal/modules/payments"
	"kota/internal/modules/refund"
	"kota/internal/notify"
	"kota/internal/realtime"
)

func main() {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		slog.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	provider := payments.NewHTTPProvider(cfg.Payment.BaseURL, cfg.Payment.Secret)

	catalogStore := catalog.NewStore(dbPool)
	ledgerStore := ledger.NewStore(dbPool)

	orderStore := order.NewPGStore(dbPool)
	orderSvc := order.NewService(orderStore, catalogStore, provider)

	refundStore := refund.NewPGStore(dbPool)
	refundSvc := refund.NewService(refundStore, orderSvc)
	orderSvc.SetRefundOpener(refundSvc)

	geoStore := geo.NewStore(redisClient, time.Duration(cfg.Geo.TTLSeconds)*time.Second)
	geoSvc := geo.NewService(geoStore)

	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry)

	router := httptransport.NewRouter(httptransport.ServerDeps{
		Orders:      orderSvc,
		Refunds:     refundSvc,
		Geo:         geoSvc,
		Ledger:      ledgerStore,
		Registry:    registry,
		Broadcaster: broadcaster,
		Notifier:    notify.LogSender{},
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}
