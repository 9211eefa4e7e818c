package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// pgx pool tuning; durations as Go duration strings, e.g. "30m"
	DBPoolMaxConns        int32  `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns        int32  `envconfig:"DB_POOL_MIN_CONNS" default:"2"`
	DBPoolMaxConnLifetime string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`

	// thread cache; empty REDIS_URL disables caching entirely
	RedisURL     string  `envconfig:"REDIS_URL"`
	CachePrefix  string  `envconfig:"CACHE_PREFIX"`
	CacheSeedRPS float64 `envconfig:"CACHE_SEED_RPS" default:"50"`

	// orphan sink; empty queue URL disables publishing
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	OrphanQueueURL     string `envconfig:"ORPHAN_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

// CacheEnabled reports whether a cache backend is configured at all. When
// false every cache-touching path degrades to durable-store-only behavior.
func (c Config) CacheEnabled() bool { return c.RedisURL != "" }

func Load() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
