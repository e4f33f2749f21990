package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/broker"
	"github.com/Vovarama1992/speech_billing/internal/config"
	"github.com/Vovarama1992/speech_billing/internal/conversion"
	"github.com/Vovarama1992/speech_billing/internal/delivery"
	"github.com/Vovarama1992/speech_billing/internal/gateway"
	"github.com/Vovarama1992/speech_billing/internal/infra"
	"github.com/Vovarama1992/speech_billing/internal/jokes"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/notificator"
	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/Vovarama1992/speech_billing/internal/storage"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/Vovarama1992/speech_billing/internal/telegram"
	"github.com/Vovarama1992/speech_billing/internal/user"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	retentionTick = 10 * time.Minute
	settleTick    = time.Minute
)

func main() {

	// =========================================================================
	// ENV / DB INIT
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseLogger, _ := zap.NewProduction()
	defer baseLogger.Sync()
	sugar := baseLogger.Sugar()
	zl := logger.NewZapLogger(sugar)

	db, err := infra.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if err := infra.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// =========================================================================
	// INFRASTRUCTURE
	// =========================================================================

	rabbit, err := broker.Connect(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer rabbit.Close()

	if err := rabbit.DeclareWorkQueue(cfg.TaskQueue); err != nil {
		log.Fatalf("declare queue: %v", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, cfg.StorageDir, infra.S3Options(cfg.S3))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// =========================================================================
	// REPOSITORIES
	// =========================================================================

	taskRepo := tasks.NewRepo(db)
	ledgerRepo := ledger.NewRepo(db)
	userRepo := user.NewInfra(db)
	auditRepo := audit.NewRepo(db)

	// =========================================================================
	// ERROR NOTIFICATION
	// =========================================================================

	errInfra := notificator.NewInfra(nil, cfg.AdminChatID)
	errService := notificator.NewService(errInfra)

	// =========================================================================
	// DOMAIN SERVICES
	// =========================================================================

	auditService := audit.NewService(auditRepo, sugar)
	userService := user.NewService(userRepo, ledgerRepo, cfg.StartBalance)
	if err := userService.EnsureSystemUser(ctx); err != nil {
		log.Fatalf("system user: %v", err)
	}

	billingService := billing.NewService(taskRepo, ledgerRepo, auditService)
	gw := gateway.New(taskRepo, rabbit, cfg.TaskQueue, cfg.RPCTimeout, sugar, auditService)
	flow := conversion.NewFlow(gw, billingService, userService, errService, auditService, sugar)

	// пакеты кредитов доступны только при настроенной YooKassa
	var pkgService packages.Service
	if cfg.YooKassa.Enabled() {
		pkgService = packages.NewService(
			packages.NewRepo(db),
			packages.NewYooKassaProvider(packages.YooKassaOptions(cfg.YooKassa)),
			ledgerRepo,
			auditService,
			sugar,
		)
	}

	// =========================================================================
	// TELEGRAM BOT
	// =========================================================================

	bot, err := tgbotapi.NewBotAPI(cfg.MustTelegram())
	if err != nil {
		log.Fatalf("failed to init telegram bot: %v", err)
	}
	errInfra.SetBot(bot)

	jokeService := jokes.NewService(jokes.NewRepo(db))

	botApp := &telegram.BotApp{
		UserService:    userService,
		BillingService: billingService,
		Flow:           flow,
		Packages:       pkgService,
		Jokes:          jokeService,
		Storage:        store,
		ErrorNotify:    errService,
		Audit:          auditService,
		Log:            sugar,
		TopUpAmount:    cfg.TopUpAmount,
	}
	go botApp.Run(ctx, bot)

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	// задачи, завершённые после таймаута шлюза, списываются здесь
	settler := billing.NewSettler(billing.NewUnbilledRepo(db), billingService, cfg.RPCTimeout, sugar)
	go settler.Run(ctx, settleTick)

	if cfg.Retention > 0 {
		go func() {
			ticker := time.NewTicker(retentionTick)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := taskRepo.DeleteFinishedBefore(ctx, time.Now().Add(-cfg.Retention))
					if err != nil {
						sugar.Errorw("[retention] error", "err", err)
						continue
					}
					if n > 0 {
						sugar.Infow("[retention] removed finished tasks", "count", n)
					}
				}
			}
		}()
	}

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	handler := delivery.NewHandler(taskRepo, ledgerRepo, billingService, flow, pkgService, errService, zl).
		WithJokes(jokeService)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           delivery.NewRouter(handler, cfg.AdminToken, cfg.RateLimit),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// =========================================================================
	// START SERVER
	// =========================================================================

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "listening at " + srv.Addr,
		Service: "speech_gateway",
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
