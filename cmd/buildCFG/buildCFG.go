package buildCFG

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"eventWaitlist/internal/mailer"
	"eventWaitlist/internal/rabbit"
	"eventWaitlist/internal/sweeper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrMissingDSN = errors.New("database.master_dsn is required for the postgres driver")

type ServerConfig struct {
	Port    string
	GinMode string
}

type DBConfig struct {
	Driver    string
	MasterDSN string
	SlaveDSNs []string
	Options   *dbpg.Options
	// SQLitePath is used by the sqlite driver; ":memory:" keeps nothing.
	SQLitePath string
}

type RabbitConfig struct {
	rabbit.Config
	Enabled bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Enabled  bool
}

type SweepConfig struct {
	Interval time.Duration
	Enabled  bool
}

type RateLimitConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
	Enabled bool
}

func stringOr(cfg *config.Config, key, def string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(cfg *config.Config, key string, def int) int {
	if v := cfg.GetInt(key); v != 0 {
		return v
	}
	return def
}

func durationOr(cfg *config.Config, log *zerolog.Logger, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msgf("invalid duration, using %s", def)
		return def
	}
	return d
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	sc := ServerConfig{
		Port:    stringOr(cfg, "server.port", "8080"),
		GinMode: stringOr(cfg, "server.gin_mode", "release"),
	}
	log.Info().Str("port", sc.Port).Str("gin_mode", sc.GinMode).Msg("server config loaded")
	return sc
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (DBConfig, error) {
	dc := DBConfig{
		Driver:     strings.ToLower(stringOr(cfg, "database.driver", DriverPostgres)),
		MasterDSN:  cfg.GetString("database.master_dsn"),
		SlaveDSNs:  cfg.GetStringSlice("database.slave_dsns"),
		SQLitePath: stringOr(cfg, "database.sqlite_path", "waitlist.db"),
		Options: &dbpg.Options{
			MaxOpenConns:    intOr(cfg, "database.max_open_conns", 10),
			MaxIdleConns:    intOr(cfg, "database.max_idle_conns", 5),
			ConnMaxLifetime: durationOr(cfg, log, "database.conn_max_lifetime", 30*time.Minute),
		},
	}

	switch dc.Driver {
	case DriverPostgres:
		if dc.MasterDSN == "" {
			return DBConfig{}, ErrMissingDSN
		}
	case DriverSQLite:
	default:
		return DBConfig{}, fmt.Errorf("unknown database driver %q", dc.Driver)
	}

	log.Info().Str("driver", dc.Driver).Int("slaves", len(dc.SlaveDSNs)).Msg("database config loaded")
	return dc, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled: cfg.GetBool("rabbit.enabled"),
		Config: rabbit.Config{
			URL:          cfg.GetString("rabbit.url"),
			Exchange:     stringOr(cfg, "rabbit.exchange", "waitlist.notifications"),
			ExchangeKind: stringOr(cfg, "rabbit.exchange_kind", "direct"),
			Queue:        stringOr(cfg, "rabbit.queue", "waitlist.notifications"),
			RoutingKey:   stringOr(cfg, "rabbit.routing_key", "notification"),
			Prefetch:     intOr(cfg, "rabbit.prefetch", 16),
		},
	}
	if rc.Enabled && rc.URL == "" {
		return RabbitConfig{}, errors.New("rabbit.url is required when rabbit is enabled")
	}
	log.Info().Bool("enabled", rc.Enabled).Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit config loaded")
	return rc, nil
}

func BuildRedisConfig(cfg *config.Config, log *zerolog.Logger) RedisConfig {
	rc := RedisConfig{
		Enabled:  cfg.GetBool("redis.enabled"),
		Addr:     stringOr(cfg, "redis.addr", "localhost:6379"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
		Prefix:   stringOr(cfg, "redis.prefix", "waitlist:stats"),
		TTL:      durationOr(cfg, log, "redis.ttl", 7*24*time.Hour),
	}
	log.Info().Bool("enabled", rc.Enabled).Str("addr", rc.Addr).Msg("redis config loaded")
	return rc
}

func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) mailer.Config {
	mc := mailer.Config{
		Enabled:  cfg.GetBool("mail.enabled"),
		Host:     stringOr(cfg, "mail.host", "smtp.gmail.com"),
		Port:     intOr(cfg, "mail.port", 587),
		From:     cfg.GetString("mail.from"),
		Password: cfg.GetString("mail.password"),
	}
	if mc.Enabled && mc.From == "" {
		log.Warn().Msg("mail.from is empty, disabling mail")
		mc.Enabled = false
	}
	log.Info().Bool("enabled", mc.Enabled).Str("host", mc.Host).Msg("mail config loaded")
	return mc
}

func BuildSweepConfig(cfg *config.Config, log *zerolog.Logger) SweepConfig {
	sc := SweepConfig{
		Enabled:  !cfg.GetBool("sweep.disabled"),
		Interval: durationOr(cfg, log, "sweep.interval", sweeper.DefaultInterval),
	}
	log.Info().Bool("enabled", sc.Enabled).Dur("interval", sc.Interval).Msg("sweep config loaded")
	return sc
}

func BuildRateLimitConfig(cfg *config.Config, log *zerolog.Logger) RateLimitConfig {
	rc := RateLimitConfig{
		Enabled: cfg.GetBool("rate_limit.enabled"),
		RPS:     5,
		Burst:   intOr(cfg, "rate_limit.burst", 10),
		IdleTTL: durationOr(cfg, log, "rate_limit.idle_ttl", 15*time.Minute),
	}
	if raw := strings.TrimSpace(cfg.GetString("rate_limit.rps")); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps <= 0 {
			log.Warn().Str("value", raw).Msg("invalid rate_limit.rps, using default")
		} else {
			rc.RPS = rps
		}
	}
	log.Info().Bool("enabled", rc.Enabled).Float64("rps", rc.RPS).Int("burst", rc.Burst).Msg("rate limit config loaded")
	return rc
}
