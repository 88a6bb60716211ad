// The worker process delivers outbox events: a dispatcher polls pending rows
// onto the asynq queue, and the asynq server republishes them on the bus
// where the automation engine evaluates rules. Rule execution therefore
// happens here, not in the API process. Because the engine suspends on
// interactive prompts, the worker also serves the automation HTTP surface
// so operator UIs can attach a prompt stream to this process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pipeline_crm_backend/internal/automation"
	"pipeline_crm_backend/internal/directory"
	"pipeline_crm_backend/internal/events"
	apphttp "pipeline_crm_backend/internal/http"
	"pipeline_crm_backend/internal/http/router"
	"pipeline_crm_backend/internal/leads"
	"pipeline_crm_backend/internal/scheduler"
	"pipeline_crm_backend/internal/tasks"
	"pipeline_crm_backend/platform/config"
	"pipeline_crm_backend/platform/db"
	"pipeline_crm_backend/platform/logger"
	"pipeline_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting automation worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}
	for attempt := 1; attempt <= 5; attempt++ {
		if err = connect(); err == nil {
			break
		}
		log.Warn("database connection failed", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	leadsModule := leads.NewModule(pool, val, log)
	directoryRepo := directory.New(pool)
	taskRepo := tasks.New(pool)

	automationModule := automation.NewModule(pool, automation.Collaborators{
		Leads:   leadsModule.Service(),
		Tenants: leadsModule.Service(),
		Stages:  directoryRepo,
		Tasks:   taskRepo,
		Fields:  directoryRepo,
	}, cfg, val, log)
	automationModule.RegisterHandlers(eventBus)

	dispatcher, err := scheduler.NewOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()

	worker, err := scheduler.NewWorker(cfg, pool, eventBus, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{automationModule},
	}
	engine := router.New(app)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		dispatcher.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info("worker http listening", "addr", cfg.WorkerHTTPAddr)
		srvErr <- engine.Run(cfg.WorkerHTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("worker http server failed", "error", err)
		}
		stop()
	}

	if err := group.Wait(); err != nil {
		log.Error("worker stopped", "error", err)
	}
	log.Info("automation worker shut down")
}
