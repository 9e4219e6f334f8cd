package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP
	Port       int  `yaml:"port"`
	TrustProxy bool `yaml:"trust_proxy"`

	// Database
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	// Wallet RPC
	RPCURL      string        `yaml:"rpc_url"`
	RPCUser     string        `yaml:"rpc_user"`
	RPCPassword string        `yaml:"rpc_password"`
	RPCAccount  string        `yaml:"rpc_account"`
	RPCTimeout  time.Duration `yaml:"rpc_timeout"`
	RPCRPS      float64       `yaml:"rpc_rps"`

	// hCaptcha
	HCaptchaSecret    string        `yaml:"hcaptcha_secret"`
	HCaptchaSiteKey   string        `yaml:"hcaptcha_site_key"`
	HCaptchaVerifyURL string        `yaml:"hcaptcha_verify_url"`
	CaptchaTimeout    time.Duration `yaml:"captcha_timeout"`

	// Addresses
	AddressPrefix string `yaml:"address_prefix"`
	AddressLength int    `yaml:"address_length"`

	// Receive throttle
	ReceiveRPS   float64 `yaml:"receive_rps"`
	ReceiveBurst int     `yaml:"receive_burst"`

	// Web page
	CoinName     string `yaml:"coin_name"`
	Ticker       string `yaml:"ticker"`
	ExplorerLink string `yaml:"explorer_link"`
	Copyright    string `yaml:"copyright"`
	Donate       string `yaml:"donate"`
	AADSID       string `yaml:"aads_id"`

	// Operator notifications
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`

	// Stats
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	StatsPrefix   string `yaml:"stats_prefix"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration used before files and env are applied.
func Default() *Config {
	return &Config{
		Port:       8035,
		TrustProxy: true,

		DBPath: "./main.sqlite3",

		RPCURL:     "http://localhost:1234",
		RPCAccount: "faucet",
		RPCTimeout: 30 * time.Second,
		RPCRPS:     4,

		HCaptchaVerifyURL: "https://hcaptcha.com/siteverify",
		CaptchaTimeout:    10 * time.Second,

		AddressPrefix: "B",
		AddressLength: 34,

		ReceiveRPS:   0.2,
		ReceiveBurst: 5,

		CoinName:     "Bunkercoin",
		Ticker:       "BKC",
		ExplorerLink: "https://explorer.bunkercoin.org/?action=tx&v=",
		Copyright:    "2022-2024",

		StatsPrefix: "faucet:stats",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file on top of the defaults; environment variables still win.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	// HTTP
	c.Port = getEnvInt("PORT", c.Port)
	c.TrustProxy = getEnvBool("TRUST_PROXY", c.TrustProxy)

	// Database
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	// Wallet RPC
	c.RPCURL = strings.TrimSuffix(getEnv("RPC_URL", c.RPCURL), "/")
	c.RPCUser = getEnv("RPC_USER", c.RPCUser)
	c.RPCPassword = getEnv("RPC_PASSWORD", c.RPCPassword)
	c.RPCAccount = getEnv("RPC_ACCOUNT", c.RPCAccount)
	c.RPCTimeout = getEnvDuration("RPC_TIMEOUT", c.RPCTimeout)
	c.RPCRPS = getEnvFloat("RPC_RPS", c.RPCRPS)

	// hCaptcha
	c.HCaptchaSecret = getEnv("HCAPTCHA_SECRET", c.HCaptchaSecret)
	c.HCaptchaSiteKey = getEnv("HCAPTCHA_SITE_KEY", c.HCaptchaSiteKey)
	c.HCaptchaVerifyURL = getEnv("HCAPTCHA_VERIFY_URL", c.HCaptchaVerifyURL)
	c.CaptchaTimeout = getEnvDuration("CAPTCHA_TIMEOUT", c.CaptchaTimeout)

	// Addresses
	c.AddressPrefix = getEnv("ADDRESS_PREFIX", c.AddressPrefix)
	c.AddressLength = getEnvInt("ADDRESS_LENGTH", c.AddressLength)

	// Receive throttle
	c.ReceiveRPS = getEnvFloat("RECEIVE_RPS", c.ReceiveRPS)
	c.ReceiveBurst = getEnvInt("RECEIVE_BURST", c.ReceiveBurst)

	// Web page
	c.CoinName = getEnv("COIN_NAME", c.CoinName)
	c.Ticker = getEnv("TICKER", c.Ticker)
	c.ExplorerLink = getEnv("EXPLORER_LINK", c.ExplorerLink)
	c.Copyright = getEnv("COPYRIGHT", c.Copyright)
	c.Donate = getEnv("DONATE_ADDRESS", c.Donate)
	c.AADSID = getEnv("AADS_ID", c.AADSID)

	// Operator notifications
	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnvInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)

	// Stats
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.StatsPrefix = getEnv("STATS_PREFIX", c.StatsPrefix)

	// Logging
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))
}

// Validate reports the first setting that makes the faucet unable to run.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("RPC_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.AddressPrefix == "" || c.AddressLength <= len(c.AddressPrefix) {
		return errors.New("ADDRESS_LENGTH must exceed the length of ADDRESS_PREFIX")
	}
	if c.ReceiveRPS <= 0 || c.ReceiveBurst <= 0 {
		return errors.New("RECEIVE_RPS and RECEIVE_BURST must be > 0")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
