package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/checkout"
	"github.com/ariefcatur/go-bullion-checkout/internal/config"
	"github.com/ariefcatur/go-bullion-checkout/internal/httpx"
	"github.com/ariefcatur/go-bullion-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-bullion-checkout/internal/kafka"
	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/memstore"
	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
	"github.com/ariefcatur/go-bullion-checkout/internal/payments"
	"github.com/ariefcatur/go-bullion-checkout/internal/postgres"
	"github.com/ariefcatur/go-bullion-checkout/internal/pricing"
	"github.com/ariefcatur/go-bullion-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Storage
	var store orders.Store
	switch cfg.Store {
	case "memory":
		mem := memstore.New()
		mem.SeedDemo(time.Now().UTC())
		store = mem
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Fatal("db schema", zap.Error(err))
		}
		store = &orders.Repo{DB: db}
	}

	// Redis is optional; without it the status cache is off.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable, status cache disabled", zap.Error(err))
			rdb = nil
		}
	}
	cache := redisx.NewStatusCache(rdb)

	// Kafka producers
	var events *kafkax.Events
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
		created.Start()
		changed.Start()
		producers = append(producers, created, changed)
		events = &kafkax.Events{Created: created, StatusChanged: changed, Service: cfg.ServiceName}
	}

	clock := pricing.SystemClock()
	inv := inventory.NewClient(cfg.InventoryURL, cfg.InventoryTimeout, m)

	svc := checkout.NewService(store, inv, events, clock, m)
	svc.Cache = cache

	router := httpx.NewRouter(log, m)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	(&httpx.CheckoutHandler{
		Quotes:   pricing.NewEngine(store, clock, m),
		Checkout: svc,
		Webhooks: &payments.Processor{
			Verifier: payments.NewVerifier(cfg.PaymentWebhookSecret),
			Store:    store,
			Cache:    cache,
			Events:   events,
			Metrics:  m,
		},
		DefaultToleranceBps: cfg.PriceToleranceBps,
	}).Register(router)
	(&httpx.OrdersHandler{Orders: store, Cache: cache}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	// in-flight checkouts still publish, so drain them before closing producers
	ctx2, cancel2 := context.WithTimeout(context.Background(), httpx.HandlerTimeout+5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
