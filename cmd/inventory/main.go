package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bullion-checkout/internal/config"
	"github.com/ariefcatur/go-bullion-checkout/internal/httpx"
	"github.com/ariefcatur/go-bullion-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-bullion-checkout/internal/kafka"
	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
	"github.com/ariefcatur/go-bullion-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-inventory"
	log := logging.MustNewLogger(service, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	svc := &inventory.Service{
		Stock: redisx.NewStock(rdb, cfg.InventoryDefaultQty),
		Dedup: redisx.NewDedup(rdb, "inventory"),
		Log:   log,
	}

	reg := prometheus.NewRegistry()
	router := httpx.NewRouter(log, metrics.New(reg))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	svc.Register(router)
	srv := &http.Server{Addr: cfg.InventoryHTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderCreated, cfg.InventoryWorkers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.InventoryHTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("consumer started",
			zap.String("group", cfg.InventoryGroup),
			zap.String("topic", orders.TopicOrderCreated),
			zap.Int("workers", cfg.InventoryWorkers),
		)
		return cons.Start(gctx, svc.HandleOrderCreated)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("exit", zap.Error(err))
	}
}
