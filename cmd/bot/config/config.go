// Package config reads the bot's settings from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultCryptoPayBaseURL = "https://pay.crypt.bot/api"
	DefaultCryptoPayTimeout = 15 * time.Second
	DefaultSendInterval     = 35 * time.Millisecond
	DefaultSendBurst        = 5
	DefaultCatalogCacheTTL  = 5 * time.Minute
)

// BotConfig holds the Telegram side of the bot.
type BotConfig struct {
	Token        string
	SendInterval time.Duration
	SendBurst    int
}

// CryptoPayConfig holds the payment gateway settings.
type CryptoPayConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// ShopConfig holds catalog and settlement settings.
type ShopConfig struct {
	Assets          []string
	CatalogCacheTTL time.Duration
}

// StorageConfig holds the optional backing stores. Empty URLs select the
// in-memory fallbacks.
type StorageConfig struct {
	DatabaseURL string
	RedisURL    string
}

// ObservabilityConfig holds the optional metrics/websocket HTTP address.
type ObservabilityConfig struct {
	Addr string
}

// LoadDotenv loads a .env file if one exists. Missing files are fine;
// real environment variables always win.
func LoadDotenv() {
	_ = godotenv.Load()
}

// LoadBot reads the Telegram settings from env.
func LoadBot() (BotConfig, error) {
	token, err := requiredString("BOT_TOKEN")
	if err != nil {
		return BotConfig{}, err
	}
	interval, err := optionalDuration("TG_SEND_INTERVAL", DefaultSendInterval)
	if err != nil {
		return BotConfig{}, err
	}
	burst, err := optionalInt("TG_SEND_BURST", DefaultSendBurst)
	if err != nil {
		return BotConfig{}, err
	}
	return BotConfig{
		Token:        token,
		SendInterval: interval,
		SendBurst:    burst,
	}, nil
}

// LoadCryptoPay reads the payment gateway settings from env.
func LoadCryptoPay() (CryptoPayConfig, error) {
	token, err := requiredString("CRYPTO_PAY_API_TOKEN")
	if err != nil {
		return CryptoPayConfig{}, err
	}
	baseURL := optionalString("CRYPTO_PAY_BASE_URL", DefaultCryptoPayBaseURL)
	timeout, err := optionalDuration("CRYPTO_PAY_TIMEOUT", DefaultCryptoPayTimeout)
	if err != nil {
		return CryptoPayConfig{}, err
	}
	return CryptoPayConfig{
		Token:   token,
		BaseURL: baseURL,
		Timeout: timeout,
	}, nil
}

// LoadShop reads settlement assets and catalog cache settings from env.
func LoadShop() (ShopConfig, error) {
	ttl, err := optionalDuration("CATALOG_CACHE_TTL", DefaultCatalogCacheTTL)
	if err != nil {
		return ShopConfig{}, err
	}
	return ShopConfig{
		Assets:          splitList(optionalString("SHOP_ASSETS", "USDT,TON")),
		CatalogCacheTTL: ttl,
	}, nil
}

// LoadStorage reads the optional database and Redis URLs from env.
func LoadStorage() StorageConfig {
	return StorageConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
	}
}

// LoadObservability reads the metrics HTTP server address from env. An
// empty address disables the server.
func LoadObservability() ObservabilityConfig {
	return ObservabilityConfig{Addr: strings.TrimSpace(os.Getenv("OBS_ADDR"))}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func optionalString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func optionalDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
