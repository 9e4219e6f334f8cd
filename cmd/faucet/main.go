package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/suspectuso/bkc-faucet/internal/captcha"
	"github.com/suspectuso/bkc-faucet/internal/config"
	"github.com/suspectuso/bkc-faucet/internal/limiter"
	"github.com/suspectuso/bkc-faucet/internal/notifier"
	"github.com/suspectuso/bkc-faucet/internal/payout"
	"github.com/suspectuso/bkc-faucet/internal/stats"
	"github.com/suspectuso/bkc-faucet/internal/storage"
	"github.com/suspectuso/bkc-faucet/internal/wallet"
	"github.com/suspectuso/bkc-faucet/internal/web"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load config
	cfg, err := loadConfig()
	log := newLogger(cfg)
	slog.SetDefault(log)

	if envErr != nil {
		log.Debug("no .env file found")
	}
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := storage.Open(ctx, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if cfg.DatabaseURL != "" {
		log.Info("storage initialized", "backend", "postgres")
	} else {
		log.Info("storage initialized", "backend", "sqlite", "path", cfg.DBPath)
	}

	// Initialize wallet client
	walletClient := wallet.NewClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword, cfg.RPCAccount, cfg.RPCTimeout, cfg.RPCRPS)
	log.Info("wallet client initialized", "url", cfg.RPCURL, "account", cfg.RPCAccount)

	// Initialize notifier
	var notify *notifier.Notifier
	if cfg.TelegramBotToken != "" {
		notify, err = notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.Ticker, cfg.ExplorerLink, log)
		if err != nil {
			log.Error("init telegram notifier, notifications disabled", "error", err)
			notify = nil
		} else {
			log.Info("telegram notifier initialized", "chat_id", cfg.TelegramChatID)
		}
	}
	defer notify.Wait()

	// Initialize stats
	memory := stats.NewMemory()
	var recorder stats.Recorder = memory
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  500 * time.Millisecond,
			ReadTimeout:  300 * time.Millisecond,
			WriteTimeout: 300 * time.Millisecond,
			MaxRetries:   1,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, stats kept in memory only", "addr", cfg.RedisAddr, "error", err)
		} else {
			recorder = stats.Tee(memory, stats.NewRedis(rdb, stats.WithPrefix(cfg.StatsPrefix)))
			log.Info("redis stats initialized", "addr", cfg.RedisAddr)
		}
	}

	srv, err := web.NewServer(web.Deps{
		Config:   cfg,
		Limiter:  limiter.New(store, log),
		Issuer:   payout.NewIssuer(walletClient, store, nil, log),
		Captcha:  captcha.NewHCaptcha(cfg.HCaptchaVerifyURL, cfg.HCaptchaSecret, cfg.CaptchaTimeout, log),
		Notifier: notify,
		Stats:    recorder,
		Memory:   memory,
		Log:      log,
	})
	if err != nil {
		log.Error("init web server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(ctx, cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server", "error", err)
		os.Exit(1)
	}
	log.Info("shutting down...")
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return config.Default(), err
		}
		return cfg, nil
	}
	return config.Load(), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
