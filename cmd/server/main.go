package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mokanichokani/ledger-service/internal/config"
	"github.com/mokanichokani/ledger-service/internal/events"
	"github.com/mokanichokani/ledger-service/internal/handler"
	"github.com/mokanichokani/ledger-service/internal/ledger"
	"github.com/mokanichokani/ledger-service/internal/logger"
	"github.com/mokanichokani/ledger-service/internal/middleware"
	"github.com/mokanichokani/ledger-service/internal/observability"
	redisClient "github.com/mokanichokani/ledger-service/internal/redis"
	"github.com/mokanichokani/ledger-service/internal/telemetry"
	"github.com/mokanichokani/ledger-service/internal/utils"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     version,
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	// The book and the log: all money state lives in memory.
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		log.Fatal("failed to load seed accounts", "error", err)
	}
	book, err := seedToAccounts(seed)
	if err != nil {
		log.Fatal("invalid seed accounts", "error", err)
	}
	store := ledger.NewStore()
	store.Seed(book)
	txlog := ledger.NewTransactionLog()
	analytics := ledger.NewAnalytics(txlog)

	// Event streaming and the telemetry read side are optional: without
	// Redis the ledger still settles, it just emits nowhere.
	var sink ledger.EventSink
	if cfg.EventsEnabled {
		rdb, err := redisClient.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, running without events", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()

			publisher := events.NewPublisher(rdb.Client)
			emitter := events.NewEmitter(publisher, log, metrics, events.EmitterConfig{})
			go emitter.Run(ctx)
			sink = emitter

			recorder := telemetry.NewRecorder(
				telemetry.NewActivityRepository(rdb.Client, log), metrics, log)
			subscriber := events.NewSubscriber(rdb.Client, log, events.SubscriberConfig{
				Group:    "ledger-telemetry-group",
				Consumer: "telemetry-recorder-1",
				Stream:   events.LedgerEventsStream,
				Handler:  recorder.HandleEvent,
			})
			go func() {
				if err := subscriber.Start(ctx); err != nil {
					log.Info("telemetry subscriber stopped", "error", err)
				}
			}()
		}
	}

	engine := ledger.NewEngine(store, txlog, sink, log)

	accountHandler := handler.NewAccountHandler(store)
	transactionHandler := handler.NewTransactionHandler(engine, txlog)
	analyticsHandler := handler.NewAnalyticsHandler(analytics)
	adminHandler := handler.NewAdminHandler(engine)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	if cfg.OTelEnabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Metrics(metrics))
	router.Use(middleware.SessionTracker(analytics, metrics))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapF(metrics.WriteHTTP))
	}

	v1 := router.Group("/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.GET("", accountHandler.ListAccounts)
			accounts.GET("/:accountNumber", accountHandler.GetAccount)
			accounts.GET("/:accountNumber/balance", accountHandler.GetBalance)
			accounts.GET("/:accountNumber/transactions", transactionHandler.ListAccountTransactions)
		}
		transactions := v1.Group("/transactions")
		{
			transactions.POST("/deposit", transactionHandler.Deposit)
			transactions.POST("/withdrawal", transactionHandler.Withdraw)
			transactions.POST("/transfer", transactionHandler.Transfer)
			transactions.GET("", transactionHandler.ListTransactions)
			transactions.GET("/:transactionId", transactionHandler.GetTransaction)
		}
		analyticsRoutes := v1.Group("/analytics")
		{
			analyticsRoutes.GET("/summary", analyticsHandler.GetSummary)
			analyticsRoutes.GET("/transactions", analyticsHandler.GetByType)
		}
		admin := v1.Group("/admin")
		{
			admin.GET("/suspect-accounts", adminHandler.ListSuspectAccounts)
			admin.DELETE("/suspect-accounts/:accountNumber", adminHandler.ClearSuspectAccount)
		}
	}

	// Graceful shutdown: stop the emitter and subscriber loops on signal.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	log.Info("ledger service starting",
		"port", cfg.Port, "environment", cfg.Environment, "accounts", len(book))
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("failed to start server", "error", err)
	}
}

// seedToAccounts converts seed rows to ledger accounts. Balances parse as
// decimals; a missing account number gets a generated one.
func seedToAccounts(seed []config.SeedAccount) ([]ledger.Account, error) {
	accounts := make([]ledger.Account, 0, len(seed))
	for _, row := range seed {
		balance, err := decimal.NewFromString(row.Balance)
		if err != nil {
			return nil, fmt.Errorf("account %s balance %q: %w", row.AccountNumber, row.Balance, err)
		}
		if balance.Sign() < 0 {
			return nil, fmt.Errorf("account %s opens with negative balance %s", row.AccountNumber, row.Balance)
		}
		accountNumber := row.AccountNumber
		if accountNumber == "" {
			accountNumber = utils.GenerateAccountNumber()
		}
		if !utils.ValidateAccountNumber(accountNumber) {
			return nil, fmt.Errorf("account number %q is not an 8-digit 01-prefixed number", accountNumber)
		}
		currency := row.Currency
		if currency == "" {
			currency = "GBP"
		}
		accounts = append(accounts, ledger.Account{
			AccountNumber: accountNumber,
			SortCode:      row.SortCode,
			Name:          row.Name,
			Contact:       row.Contact,
			Currency:      currency,
			Balance:       balance,
		})
	}
	return accounts, nil
}
