package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/broker"
	"github.com/Vovarama1992/speech_billing/internal/config"
	"github.com/Vovarama1992/speech_billing/internal/executor"
	"github.com/Vovarama1992/speech_billing/internal/infra"
	"github.com/Vovarama1992/speech_billing/internal/pricing"
	"github.com/Vovarama1992/speech_billing/internal/speech"
	"github.com/Vovarama1992/speech_billing/internal/storage"
	"github.com/Vovarama1992/speech_billing/internal/tasks"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseLogger, _ := zap.NewProduction()
	defer baseLogger.Sync()
	sugar := baseLogger.Sugar()

	db, err := infra.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if err := infra.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

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

	// --- провайдеры речи ---
	keys := speech.Keys{
		OpenAI:          cfg.OpenAIKey,
		ElevenLabs:      cfg.ElevenLabsKey,
		ElevenLabsVoice: cfg.ElevenLabsVoiceID,
		Deepgram:        cfg.DeepgramKey,
	}
	stt, err := speech.NewSTT(cfg.STTProvider, keys)
	if err != nil {
		log.Fatalf("stt: %v", err)
	}
	tts, err := speech.NewTTS(cfg.TTSProvider, keys)
	if err != nil {
		log.Fatalf("tts: %v", err)
	}
	speechService := speech.NewService(stt, tts, store)

	price, err := pricing.New(cfg.PricingMode)
	if err != nil {
		log.Fatalf("pricing: %v", err)
	}

	auditService := audit.NewService(audit.NewRepo(db), sugar)
	auditService.Log(ctx, 0, audit.ActionWorkerStarted, fmt.Sprintf(
		"queue=%s prefetch=%d stt=%s tts=%s pricing=%s",
		cfg.TaskQueue, cfg.Prefetch, cfg.STTProvider, cfg.TTSProvider, cfg.PricingMode,
	))

	exec := executor.New(
		tasks.NewRepo(db),
		rabbit,
		cfg.TaskQueue,
		cfg.Prefetch,
		speechService,
		store,
		price,
		sugar,
		auditService,
	)

	// падение транспорта завершает процесс, перезапуск делает supervisor
	if err := exec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("executor stopped: %v", err)
	}
	sugar.Infow("[worker] stopped")
}
