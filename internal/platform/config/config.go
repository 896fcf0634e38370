package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tenantplane/internal/platform/database"
	pstrings "tenantplane/pkg/platform/strings"
)

// Mode is the deployment topology of the running process.
type Mode string

const (
	// ModeSilo serves exactly one tenant whose identity is fixed by configuration.
	ModeSilo Mode = "SILO"
	// ModeHub serves many tenants resolved per request.
	ModeHub Mode = "HUB"
)

// Event transports understood by EVENT_TRANSPORT.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
)

// LookupFunc reads one environment value. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ResolveMode selects SILO when TENANT_ID holds a non-blank value and HUB otherwise.
func ResolveMode(lookup LookupFunc) Mode {
	if v, ok := lookup("TENANT_ID"); ok && strings.TrimSpace(v) != "" {
		return ModeSilo
	}
	return ModeHub
}

// Silo is the fixed tenant identity of a dedicated instance.
type Silo struct {
	TenantID          string
	TenantName        string
	SubscribedModules []string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	AdminToken     string
	TenantHeader   string
	ModuleHeader   string
}

// MongoConfig locates the default document database.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis client settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker settings. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers     string
	TopicPrefix string
	GroupPrefix string
}

// Config is the full process configuration.
type Config struct {
	Mode      Mode
	Silo      Silo
	Server    Server
	Database  database.Config
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Transport string
}

// IsSilo reports whether the process serves a single fixed tenant.
func (c Config) IsSilo() bool { return c.Mode == ModeSilo }

// FromEnv builds the configuration from process environment so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds the configuration from lookup. Unset values take defaults;
// malformed numeric or duration values are reported.
func Load(lookup LookupFunc) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Mode: ResolveMode(lookup),
		Server: Server{
			Addr:           r.str("TENANTPLANE_ADDR", ":8080"),
			Environment:    r.str("ENVIRONMENT", "development"),
			LogLevel:       r.str("LOG_LEVEL", "info"),
			RequestTimeout: r.duration("REQUEST_TIMEOUT", 30*time.Second),
			AdminToken:     r.str("ADMIN_API_TOKEN", ""),
			TenantHeader:   r.str("TENANT_HEADER", "X-Tenant-ID"),
			ModuleHeader:   r.str("MODULE_HEADER", "X-Module"),
		},
		Mongo: MongoConfig{
			URI:      r.str("MONGO_URI", ""),
			Database: r.str("MONGO_DATABASE", "tenantplane"),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     r.str("KAFKA_BROKERS", ""),
			TopicPrefix: r.str("KAFKA_TOPIC_PREFIX", "tenantplane"),
			GroupPrefix: r.str("KAFKA_GROUP_PREFIX", "tenantplane"),
		},
	}

	db := database.DefaultConfig()
	db.URL = r.str("DATABASE_URL", "")
	db.MaxOpenConns = r.integer("DATABASE_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.MaxIdleConns = r.integer("DATABASE_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.Migrate = r.boolean("DATABASE_MIGRATE", true)
	cfg.Database = db

	if cfg.Mode == ModeSilo {
		id := strings.TrimSpace(r.str("TENANT_ID", ""))
		cfg.Silo = Silo{
			TenantID:          id,
			TenantName:        r.str("TENANT_NAME", id),
			SubscribedModules: pstrings.SplitList(r.str("SUBSCRIBED_MODULES", "")),
		}
	}

	cfg.Transport = strings.ToLower(r.str("EVENT_TRANSPORT", defaultTransport(cfg)))
	switch cfg.Transport {
	case TransportMemory:
	case TransportRedis:
		if cfg.Redis.URL == "" {
			r.fail("EVENT_TRANSPORT=redis requires REDIS_URL")
		}
	case TransportKafka:
		if cfg.Kafka.Brokers == "" {
			r.fail("EVENT_TRANSPORT=kafka requires KAFKA_BROKERS")
		}
	default:
		r.fail(fmt.Sprintf("unknown EVENT_TRANSPORT %q", cfg.Transport))
	}

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

func defaultTransport(cfg Config) string {
	if cfg.Redis.URL != "" {
		return TransportRedis
	}
	return TransportMemory
}

// reader collects the first parse failure so Load reports one error.
type reader struct {
	lookup LookupFunc
	err    error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (r *reader) fail(msg string) {
	if r.err == nil {
		r.err = fmt.Errorf("config: %s", msg)
	}
}
