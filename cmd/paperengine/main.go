// Command paperengine is the composition root: it wires the execution
// router, risk gate, and paper trader together against Postgres and Redis,
// in the style of the teacher's cmd/server/main.go (plain getEnv-driven
// config, zap logging, pgxpool connection, migrations run on startup).
package main

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/adapters/broker"
	"github.com/tradecore/engine/internal/adapters/marketdata"
	"github.com/tradecore/engine/internal/auditlog"
	"github.com/tradecore/engine/internal/config"
	"github.com/tradecore/engine/internal/execution"
	"github.com/tradecore/engine/internal/paper"
	"github.com/tradecore/engine/internal/persistence/postgres"
	"github.com/tradecore/engine/internal/quotecache"
	"github.com/tradecore/engine/internal/risk"
	"github.com/tradecore/engine/internal/scheduler"
	"github.com/tradecore/engine/internal/slippage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting paper trading engine")

	cfg := config.Load()
	ctx := context.Background()

	if err := checkDependencies(ctx, cfg); err != nil {
		logger.Fatal("dependency check failed", zap.Error(err))
	}

	dbPool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("running database migrations")
	if err := postgres.Migrate(cfg.Postgres.DSN()); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	repo := postgres.New(dbPool)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	quotes := quotecache.New(redisClient, quotecache.DefaultConfig())
	_ = quotes // reserved for REST-polling callers; the simulated feed below serves quotes in-process

	audit := auditlog.New(auditlog.DefaultConfig(cfg.AuditLogPath))
	defer func() { _ = audit.Close() }()

	_, _, sched := buildEngine(cfg, logger, repo, audit)

	sched.Start()
	defer sched.Stop()

	if snap, ok, err := repo.LatestSnapshot(ctx); err != nil {
		logger.Warn("failed to load latest snapshot", zap.Error(err))
	} else if ok {
		logger.Info("resumed from snapshot", zap.String("portfolio_value", snap.PortfolioValue.String()))
	}

	logger.Info("paper trading engine initialized",
		zap.String("environment", cfg.Environment),
		zap.String("initial_cash", cfg.Trading.InitialCash.String()))

	select {}
}

// checkDependencies pings every independent external dependency and
// aggregates failures with multierror so a misconfigured deployment
// reports every broken collaborator at once instead of just the first.
func checkDependencies(ctx context.Context, cfg config.Config) error {
	var result *multierror.Error

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	probe, err := pgxpool.New(dbCtx, cfg.Postgres.DSN())
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		if err := probe.Ping(dbCtx); err != nil {
			result = multierror.Append(result, err)
		}
		probe.Close()
	}

	redisCtx, cancel2 := context.WithTimeout(ctx, 5*time.Second)
	defer cancel2()
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := client.Ping(redisCtx).Err(); err != nil {
		result = multierror.Append(result, err)
	}
	_ = client.Close()

	return result.ErrorOrNil()
}

// buildEngine wires every component per spec §2's dependency order. It is
// kept separate from main so tests can construct the same graph against
// fakes.
func buildEngine(cfg config.Config, logger *zap.Logger, repo paper.Repository, audit *auditlog.Log) (*paper.PaperTrader, *paper.ExecutionMonitor, *scheduler.Scheduler) {
	startPrices := map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(150),
		"MSFT": decimal.NewFromInt(300),
		"SPY":  decimal.NewFromInt(450),
	}
	adv := map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(50_000_000),
		"MSFT": decimal.NewFromInt(25_000_000),
		"SPY":  decimal.NewFromInt(80_000_000),
	}

	md := marketdata.New(logger, marketdata.DefaultConfig(), startPrices, adv)
	brokerAdapter := broker.New(logger, md)

	slippageModel := slippage.New(slippage.Config{
		BaseSpreadBps: cfg.Slippage.BaseSpreadBps,
		ImpactCoef:    cfg.Slippage.ImpactCoef,
		MaxImpactBps:  cfg.Slippage.MaxImpactBps,
	})

	router := execution.NewExecutionRouter(execution.RouterConfig{
		SmallOrderThreshold: cfg.Router.SmallOrderThreshold,
		LargeOrderThreshold: cfg.Router.LargeOrderThreshold,
		FallbackPrice:       decimal.NewFromInt(100),
		VWAPParticipation:   decimal.NewFromFloat(0.01),
	}, brokerAdapter, md, slippageModel, logger)

	stops := risk.NewStopManager()
	breaker := risk.NewCircuitBreaker(risk.BreakerConfig{
		DailyLossLimit:       cfg.Breaker.DailyLossLimit,
		MaxDrawdownLimit:     cfg.Breaker.MaxDrawdownLimit,
		ConsecutiveLossLimit: cfg.Breaker.ConsecutiveLossLimit,
		VolatilityThreshold:  cfg.Breaker.VolatilityThreshold,
		RapidDrawdownLimit:   cfg.Breaker.RapidDrawdownLimit,
		RapidDrawdownWindow:  cfg.Breaker.RapidDrawdownWindow,
		AutoResetHours:       cfg.Breaker.AutoResetHours,
		Location:             time.UTC,
	}, cfg.Trading.InitialCash)
	kelly := risk.NewKellySizer(risk.SizingConfig{
		MaxPositionPct:   cfg.Sizing.MaxPositionPct,
		MaxTotalExposure: cfg.Sizing.MaxTotalExposure,
		MinPositionSize:  cfg.Sizing.MinPositionSize,
		MaxPositionSize:  cfg.Sizing.MaxPositionSize,
	})

	monitor := paper.NewExecutionMonitor(paper.MonitorConfig{
		SlippageThresholdBps:          cfg.Monitor.SlippageThresholdBps,
		VWAPDeviationThreshold:        cfg.Monitor.VWAPDeviationThreshold,
		FailedOrderThreshold:          cfg.Monitor.FailedOrderThreshold,
		SlowExecutionThresholdMinutes: decimal.NewFromInt(int64(cfg.Monitor.SlowExecutionThresholdMinutes)),
	})

	trader := paper.New(paper.Config{
		InitialCash:                  cfg.Trading.InitialCash,
		CommissionPerTrade:           cfg.Trading.CommissionPerTrade,
		CommissionPerShare:           cfg.Trading.CommissionPerShare,
		MinSlippage:                  cfg.Trading.MinSlippage,
		SlippageVolatilityMultiplier: cfg.Trading.SlippageVolatilityMultiplier,
		EnforceMarketHours:           cfg.Trading.EnforceMarketHours,
		ExchangeLocation:             time.UTC,
	}, logger, md, router, stops, breaker, kelly, repo, audit, monitor)

	sched := scheduler.New(logger)
	_ = sched.AddJob("daily-summary", "0 0 * * *", func(ctx context.Context) {
		summary := monitor.GetDailySummary(time.Time{})
		logger.Info("daily execution summary",
			zap.Int("executions", summary.ExecutionCount),
			zap.Int64("executed_qty", summary.ExecutedQty),
			zap.Int("failed_slices", summary.FailedSlices))
	})
	_ = sched.AddJob("portfolio-snapshot", "*/5 * * * *", func(ctx context.Context) {
		perf := trader.GetPerformanceSummary(ctx)
		logger.Info("portfolio snapshot", zap.String("portfolio_value", perf.PortfolioValue.String()))
	})

	return trader, monitor, sched
}
