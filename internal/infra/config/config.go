package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса ленты.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL     string `envconfig:"AMQP_URL"`
	EventsQueue string `envconfig:"FEED_EVENTS_QUEUE" default:"feed_events"`

	Feed struct {
		PageSize       int           `envconfig:"FEED_PAGE_SIZE" default:"20"`
		MaxPageSize    int           `envconfig:"FEED_MAX_PAGE_SIZE" default:"100"`
		AuthorCacheTTL time.Duration `envconfig:"FEED_AUTHOR_CACHE_TTL" default:"15m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
