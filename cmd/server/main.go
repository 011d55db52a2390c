package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"corebank/internal/account"
	"corebank/internal/audit"
	"corebank/internal/broker"
	"corebank/internal/cache"
	"corebank/internal/config"
	"corebank/internal/history"
	apphttp "corebank/internal/http"
	"corebank/internal/ledger"
	"corebank/internal/memstore"
	"corebank/internal/migrations"
	"corebank/internal/outbox"
	"corebank/internal/worker"
	"corebank/pkg/logger"
)

const balanceCacheTTL = 10 * time.Minute

type stores struct {
	db       *sql.DB
	accounts account.Repository
	ledger   ledger.Repository
	history  history.Repository
	audit    audit.Repository
	outbox   outbox.Repository
}

func openStores(cfg *config.Config, logr *slog.Logger) (*stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		logr.Warn("using in-memory storage, data is lost on exit")
		store := memstore.New(memstore.WithLockTimeout(cfg.LockTimeout))
		return &stores{
			accounts: store,
			ledger:   store,
			history:  store,
			audit:    store,
			outbox:   store,
		}, nil
	}

	db, err := config.ConnectDB(cfg.DB)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := migrations.Up(db, cfg.DB.Name, logr); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &stores{
		db:       db,
		accounts: account.NewMySQLRepository(db),
		ledger:   ledger.NewMySQLRepository(db),
		history:  history.NewMySQLRepository(db),
		audit:    audit.NewMySQLRepository(db),
		outbox:   outbox.NewMySQLRepository(db),
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logr := logger.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, logr)
	if err != nil {
		log.Fatal(err)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	var ledgerOpts []ledger.Option
	var balances apphttp.BalanceCache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Close()

		balanceCache := cache.NewBalanceCache(client, balanceCacheTTL)
		ledgerOpts = append(ledgerOpts, ledger.WithBalanceObserver(balanceCache))
		balances = balanceCache
		logr.Info("balance cache enabled", "addr", cfg.RedisAddr)
	}

	accountSvc := account.NewService(st.accounts, logr, cfg.DefaultCurrency)
	ledgerSvc := ledger.NewService(st.ledger, st.audit, logr, cfg.ApprovalThreshold, ledgerOpts...)
	historySvc := history.NewService(st.history, st.audit, logr)

	dispatcherDone := make(chan struct{})
	if cfg.RabbitMQURL != "" {
		rabbit := broker.NewRabbitMQ(cfg.RabbitMQURL)
		if err := rabbit.Connect(); err != nil {
			log.Fatal(err)
		}
		defer rabbit.Close()

		if err := rabbit.DeclareExchange(cfg.RabbitMQExchange); err != nil {
			log.Fatal(err)
		}

		dispatcher := outbox.NewDispatcher(st.outbox, broker.NewPublisher(rabbit, cfg.RabbitMQExchange), logr)
		go func() {
			defer close(dispatcherDone)
			dispatcher.Run(ctx)
		}()
		logr.Info("outbox dispatcher started", "exchange", cfg.RabbitMQExchange)
	} else {
		close(dispatcherDone)
	}

	pool := worker.NewPool(cfg.QueueSize, logr)
	pool.Start(cfg.WorkerCount)

	var pinger apphttp.Pinger
	if st.db != nil {
		pinger = st.db
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: apphttp.NewRouter(apphttp.Deps{
			Accounts: accountSvc,
			Ledger:   ledgerSvc,
			History:  historySvc,
			Audit:    st.audit,
			Pool:     pool,
			Balances: balances,
			DB:       pinger,
			Logger:   logr,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Info("server running",
			"port", cfg.Port,
			"storage", cfg.StorageDriver,
			"approval_threshold", cfg.ApprovalThreshold.String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", "error", err)
	}
	pool.Shutdown()
	<-dispatcherDone

	logr.Info("server stopped gracefully")
}
