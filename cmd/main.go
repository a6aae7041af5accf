package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mercadomm/orders-backend/internal/clients/openai"
	"github.com/mercadomm/orders-backend/internal/clients/twilio"
	"github.com/mercadomm/orders-backend/internal/data/db"
	"github.com/mercadomm/orders-backend/internal/data/repos"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	apphttp "github.com/mercadomm/orders-backend/internal/http"
	"github.com/mercadomm/orders-backend/internal/observability"
	"github.com/mercadomm/orders-backend/internal/pkg/envutil"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/realtime"
	"github.com/mercadomm/orders-backend/internal/realtime/bus"
	"github.com/mercadomm/orders-backend/internal/services"
	"github.com/mercadomm/orders-backend/internal/temporalx"
	"github.com/mercadomm/orders-backend/internal/temporalx/temporalworker"
)

func main() {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "orders-backend"),
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	pg := postgresService.DB()

	// Repos
	customerRepo := repos.NewCustomerRepo(pg, log)
	messageRepo := repos.NewInboundMessageRepo(pg, log)
	draftRepo := repos.NewDraftRepo(pg, log)
	draftMessageRepo := repos.NewDraftMessageRepo(pg, log)
	orderRepo := repos.NewOrderRepo(pg, log)

	// Outbound clients. Both are optional: without Twilio the admin
	// question flows only log, without OpenAI parsing degrades to the
	// heuristic parser.
	whatsapp, err := twilio.NewFromEnv(log)
	if err != nil {
		log.Warn("twilio client unavailable; outbound messages disabled", "error", err)
		whatsapp = nil
	}

	var parser services.OrderParser
	if aiClient, aiErr := openai.NewClient(log); aiErr != nil {
		log.Warn("openai client unavailable; using heuristic parser", "error", aiErr)
		parser = services.NewHeuristicOrderParser(log)
	} else {
		parser, err = services.NewOpenAIOrderParser(log, aiClient)
		if err != nil {
			log.Error("order parser init failed", "error", err)
			os.Exit(1)
		}
	}

	// Realtime hub, with the redis bus fanning events across replicas
	// when REDIS_ADDR is configured.
	hub := realtime.NewHub(log)
	var realtimeBus bus.Bus
	if b, busErr := bus.NewRedisBus(log); busErr != nil {
		log.Warn("redis realtime bus unavailable; events stay process-local", "error", busErr)
	} else {
		realtimeBus = b
		if err := realtimeBus.StartForwarder(ctx, hub.Broadcast); err != nil {
			log.Error("realtime bus forwarder failed", "error", err)
			os.Exit(1)
		}
		defer realtimeBus.Close()
	}
	notifier := services.NewNotifier(log, hub, realtimeBus)

	// Temporal drives the draft timeout; without it an in-process
	// sweeper polls for due drafts instead.
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("temporal client init failed", "error", err)
		os.Exit(1)
	}

	var scheduler services.DraftScheduler
	if temporalClient != nil {
		defer temporalClient.Close()
		scheduler, err = services.NewTemporalDraftScheduler(log, temporalClient)
		if err != nil {
			log.Error("temporal draft scheduler init failed", "error", err)
			os.Exit(1)
		}
	} else {
		scheduler = services.NewNoopDraftScheduler(log)
	}

	cfg := draftflow.ConfigFromEnv()
	materializer := services.NewOrderMaterializer(log, customerRepo, orderRepo)
	engine := services.NewDraftEngine(
		pg, log, cfg,
		customerRepo, messageRepo, draftRepo, draftMessageRepo, orderRepo,
		materializer, parser, scheduler, notifier,
	)
	actions := services.NewOrderActions(
		pg, log, cfg,
		customerRepo, messageRepo, draftRepo, orderRepo,
		engine, scheduler, notifier, whatsapp,
	)

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:       log,
		DB:        pg,
		Hub:       hub,
		Customers: customerRepo,
		Messages:  messageRepo,
		Drafts:    draftRepo,
		Links:     draftMessageRepo,
		Orders:    orderRepo,
		Engine:    engine,
		Actions:   actions,
	})
	server := apphttp.NewServer(log, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if temporalClient != nil {
		runner, runnerErr := temporalworker.NewRunner(log, temporalClient, engine)
		if runnerErr != nil {
			log.Error("temporal worker init failed", "error", runnerErr)
			os.Exit(1)
		}
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}
	// The sweeper backstops Temporal too: a firing lost to an outage
	// still resolves on the next sweep.
	g.Go(func() error {
		interval := envutil.PositiveMillis("ORDER_DRAFT_SWEEP_INTERVAL_MS", 30*time.Second)
		engine.RunSweeper(gctx, interval)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
	}
	if otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown incomplete", "error", err)
		}
	}
	log.Info("shutdown complete")
}
