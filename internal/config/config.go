package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config собирается из окружения один раз на старте процесса.
type Config struct {
	Port        string
	DatabaseURL string
	RabbitMQURL string
	TaskQueue   string
	RPCTimeout  time.Duration
	Prefetch    int

	TelegramToken string
	AdminChatID   int64
	AdminToken    string
	RateLimit     int

	PricingMode  string
	StartBalance int64
	TopUpAmount  int64
	Retention    time.Duration

	STTProvider       string
	TTSProvider       string
	OpenAIKey         string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string

	Storage    string
	StorageDir string
	S3         S3Config

	YooKassa YooKassaConfig
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// YooKassaConfig включает покупку пакетов, если задан ShopID.
type YooKassaConfig struct {
	APIURL    string
	ShopID    string
	SecretKey string
	ReturnURL string
}

func (c YooKassaConfig) Enabled() bool {
	return c.ShopID != "" && c.SecretKey != ""
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("[config] no .env file, using process env")
	}

	cfg := &Config{
		Port:        getString("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		TaskQueue:   getString("TASK_QUEUE", "task_processing"),
		RPCTimeout:  getDuration("RPC_TIMEOUT", 30*time.Second),
		Prefetch:    getInt("WORKER_PREFETCH", 1),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AdminChatID:   getInt64("ADMIN_CHAT_ID", 0),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		RateLimit:     getInt("RATE_LIMIT", 60),

		PricingMode:  getString("PRICING_MODE", "flat"),
		StartBalance: getInt64("START_BALANCE", 10),
		TopUpAmount:  getInt64("TOPUP_AMOUNT", 5),
		Retention:    getDuration("TASK_RETENTION", 0),

		STTProvider:       getString("STT_PROVIDER", "openai"),
		TTSProvider:       getString("TTS_PROVIDER", "openai"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: getString("ELEVENLABS_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),

		Storage:    getString("STORAGE", "local"),
		StorageDir: getString("STORAGE_DIR", "data"),
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    os.Getenv("S3_REGION"),
			Secure:    getBool("S3_SECURE", true),
		},

		YooKassa: YooKassaConfig{
			APIURL:    getString("YOOKASSA_API_URL", "https://api.yookassa.ru"),
			ShopID:    os.Getenv("YOOKASSA_SHOP_ID"),
			SecretKey: os.Getenv("YOOKASSA_SECRET_KEY"),
			ReturnURL: os.Getenv("YOOKASSA_RETURN_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is not set")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive, got %s", c.RPCTimeout)
	}
	if c.Prefetch < 1 {
		return fmt.Errorf("WORKER_PREFETCH must be >= 1, got %d", c.Prefetch)
	}
	switch c.Storage {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	return nil
}

// MustTelegram нужен только процессу шлюза.
func (c *Config) MustTelegram() string {
	if c.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is not set")
	}
	return c.TelegramToken
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] bad int %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] bad int %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] bad duration %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
