// leeksaverd is the long-running daemon: it loads configuration, opens the
// database, wires every syncer into the Task Registry and Job Runtime,
// generates the schedule, and serves the thin HTTP surface — grounded on
// the teacher's cmd/main.go composition (gin.SetMode, graceful shutdown via
// signal.Notify) but with the teacher's single toshare service replaced by
// the full syncer fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"leeksaver/internal/api"
	"leeksaver/internal/config"
	"leeksaver/internal/database"
	"leeksaver/internal/doctor"
	"leeksaver/internal/embedding"
	"leeksaver/internal/jobrun"
	"leeksaver/internal/logging"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/realtime"
	"leeksaver/internal/registry"
	"leeksaver/internal/repository"
	"leeksaver/internal/scheduler"
	"leeksaver/internal/syncer"
	"leeksaver/internal/syncstatus"
	"leeksaver/internal/upstream"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to config.yaml")
	migrate := flag.Bool("migrate", false, "run AutoMigrate then exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := database.InitDB(&cfg.Database); err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer database.Close()

	if *migrate {
		if err := database.AutoMigrate(); err != nil {
			logger.Fatal("auto migrate", zap.Error(err))
		}
		logger.Info("auto migrate complete")
		return
	}

	db := database.GetDB()
	chunk := cfg.Sync.ChunkSize

	symbols := repository.NewSymbolRepository(db, chunk)
	watchlist := repository.NewWatchlistRepository(db)
	bars := repository.NewDailyBarRepository(db, chunk)
	minuteBars := repository.NewMinuteBarRepository(db, chunk)
	financials := repository.NewFinancialRepository(db, chunk)
	valuations := repository.NewValuationRepository(db, chunk)
	indicators := repository.NewTechIndicatorRepository(db, chunk)
	fundFlows := repository.NewFundFlowRepository(db, chunk)
	margins := repository.NewMarginRepository(db, chunk)
	dragonTigers := repository.NewDragonTigerRepository(db, chunk)
	northbound := repository.NewNorthboundFlowRepository(db, chunk)
	sentiment := repository.NewMarketSentimentRepository(db, chunk)
	limitUp := repository.NewLimitUpStockRepository(db, chunk)
	sectors := repository.NewSectorRepository(db, chunk)
	sectorQuotes := repository.NewSectorQuoteRepository(db, chunk)
	news := repository.NewNewsRepository(db, chunk)
	syncErrs := repository.NewSyncErrorRepository(db)
	healthReports := repository.NewHealthReportRepository(db, chunk)

	client := upstream.New(cfg.Upstream.Token, cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.Timeout)*time.Second)

	gate := ratelimit.New(ratelimit.Config{
		Capacity:     cfg.Sync.RateBurst,
		RefillPerSec: cfg.Sync.RateQPS,
		MaxAttempts:  cfg.Sync.RetryMaxAttempts,
		BaseDelay:    time.Duration(cfg.Sync.RetryBaseSeconds) * time.Second,
		CallDeadline: time.Duration(cfg.Sync.CallDeadlineSeconds) * time.Second,
	})

	cache := realtime.New(time.Duration(cfg.Schedule.RealtimeCacheTTL)*time.Second, time.Duration(cfg.Schedule.StaleGraceSeconds)*time.Second)
	statusStore := syncstatus.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	embedProvider := embedding.NewHTTPProvider(cfg.Upstream.BaseURL+"/embeddings", cfg.Upstream.Token, time.Duration(cfg.Upstream.Timeout)*time.Second, 64)

	concurrency := cfg.Sync.WorkerPoolSize

	reg := syncer.Registry{}
	reg["symbol_list"] = syncer.NewSymbolListSyncer(client, gate, symbols, syncErrs, logger, cfg.Sync)
	reg["daily_quotes"] = syncer.NewDailyQuotesSyncer(client, gate, bars, symbols, syncErrs, logger, concurrency)
	reg["tech_indicators"] = syncer.NewTechIndicatorSyncer(bars, indicators, symbols, syncErrs, logger, cfg.Sync)
	reg["valuation"] = syncer.NewValuationSyncer(client, gate, valuations, symbols, syncErrs, logger, concurrency)
	reg["fund_flow"] = syncer.NewFundFlowSyncer(client, gate, fundFlows, symbols, syncErrs, logger, concurrency)
	reg["margin"] = syncer.NewMarginSyncer(client, gate, margins, syncErrs, logger)
	reg["dragon_tiger"] = syncer.NewDragonTigerSyncer(client, gate, dragonTigers, syncErrs, logger)
	reg["northbound_flow"] = syncer.NewNorthboundFlowSyncer(client, gate, northbound, syncErrs, logger)
	reg["market_sentiment"] = syncer.NewMarketSentimentSyncer(client, gate, sentiment, syncErrs, logger)
	reg["limit_up"] = syncer.NewLimitUpSyncer(client, gate, limitUp, syncErrs, logger)
	reg["sector_quotes"] = syncer.NewSectorQuotesSyncer(client, gate, sectors, sectorQuotes, syncErrs, logger)
	reg["news"] = syncer.NewNewsSyncer(client, gate, news, syncErrs, logger)
	reg["embeddings"] = syncer.NewEmbeddingsSyncer(news, embedProvider, logger)
	reg["minute_quotes"] = syncer.NewMinuteQuotesSyncer(client, gate, minuteBars, watchlist, syncErrs, logger, concurrency)
	reg["realtime_refresh"] = syncer.NewRealtimeRefreshSyncer(client, cache, watchlist, logger)
	reg["financial_statements"] = syncer.NewFinancialStatementsSyncer(client, gate, financials, symbols, syncErrs, logger, concurrency)
	reg["news_cleanup"] = syncer.NewNewsCleanupSyncer(news, watchlist, logger, cfg.Sync)

	runtime := jobrun.New(concurrency, logger, syncErrs)
	runtime.Start(context.Background())
	defer runtime.Stop()

	doc := doctor.New(bars, valuations, financials, symbols, healthReports, runtime, reg, logger, cfg.Doctor)

	triggers, err := scheduler.Generate(registry.Tasks, cfg.Schedule)
	if err != nil {
		logger.Fatal("generate schedule", zap.Error(err))
	}
	dispatcher := newDispatcher(triggers, reg, doc, runtime, statusStore, logger)
	dispatcher.start()
	defer dispatcher.stop()

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	handler := api.NewHandler(symbols, bars, statusStore, runtime, reg, doc, logger)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// dispatcher translates the scheduler's Trigger set into live cron
// entries / interval tickers, each firing a Runtime.Submit call. Kept
// in this file rather than its own package since it is pure wiring
// between three already-tested packages.
type dispatcher struct {
	cronRunner *cron.Cron
	tickers    []*time.Ticker
	done       chan struct{}
	reg        syncer.Registry
	doc        *doctor.Doctor
	runtime    *jobrun.Runtime
	status     syncstatus.Store
	logger     *zap.Logger
}

func newDispatcher(triggers []scheduler.Trigger, reg syncer.Registry, doc *doctor.Doctor, runtime *jobrun.Runtime, status syncstatus.Store, logger *zap.Logger) *dispatcher {
	d := &dispatcher{
		cronRunner: cron.New(cron.WithSeconds()),
		done:       make(chan struct{}),
		reg:        reg,
		doc:        doc,
		runtime:    runtime,
		status:     status,
		logger:     logger,
	}
	for _, t := range triggers {
		t := t
		switch t.Kind {
		case scheduler.CronTrigger:
			if _, err := d.cronRunner.AddFunc(t.CronExpr, func() { d.fire(t.TaskName) }); err != nil {
				logger.Error("bad cron expression, task will never fire", zap.String("task", t.TaskName), zap.Error(err))
			}
		case scheduler.IntervalTrigger:
			go d.runInterval(t)
		}
	}
	return d
}

func (d *dispatcher) start() { d.cronRunner.Start() }

func (d *dispatcher) stop() {
	d.cronRunner.Stop()
	close(d.done)
}

func (d *dispatcher) runInterval(t scheduler.Trigger) {
	select {
	case <-time.After(t.InitialDelay):
	case <-d.done:
		return
	}
	d.fire(t.TaskName)
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.fire(t.TaskName)
		case <-d.done:
			return
		}
	}
}

// fire submits the named task as a Job, or — for the doctor audit, which
// has no entry in syncer.Registry — runs the Data Doctor directly.
func (d *dispatcher) fire(taskName string) {
	meta, ok := registry.ByName(taskName)
	if !ok {
		d.logger.Warn("fired unknown task", zap.String("task", taskName))
		return
	}

	if meta.SyncerName == "" {
		d.runtime.Submit(&jobrun.Job{
			Name:     taskName,
			DedupKey: taskName,
			Deadline: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := d.doc.Run(ctx)
				return err
			},
		})
		return
	}

	s, err := d.reg.Get(meta.SyncerName)
	if err != nil {
		d.logger.Error("scheduled task has no registered syncer", zap.String("task", taskName), zap.Error(err))
		return
	}

	d.runtime.Submit(&jobrun.Job{
		Name:     taskName,
		DedupKey: taskName,
		Deadline: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			report, runErr := s.Run(ctx, syncer.Scope{})
			snap := syncstatus.Snapshot{
				TaskName:    taskName,
				LastRunAt:   time.Now(),
				LastSuccess: time.Now(),
				Progress:    report.Written,
			}
			if runErr != nil {
				snap.LastError = runErr.Error()
				snap.LastSuccess = time.Time{}
			}
			if statusErr := d.status.Set(context.Background(), snap); statusErr != nil {
				d.logger.Warn("failed to persist sync status", zap.String("task", taskName), zap.Error(statusErr))
			}
			return runErr
		},
	})
}
