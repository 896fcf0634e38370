package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"tenantplane/internal/audit"
	"tenantplane/internal/events"
	"tenantplane/internal/modules"
	"tenantplane/internal/modules/billing"
	"tenantplane/internal/modules/crm"
	"tenantplane/internal/modules/hotel"
	"tenantplane/internal/platform/config"
	"tenantplane/internal/platform/database"
	"tenantplane/internal/platform/docstore"
	"tenantplane/internal/platform/health"
	"tenantplane/internal/platform/kafka"
	redisclient "tenantplane/internal/platform/redis"
	"tenantplane/internal/tenancy/connections"
	"tenantplane/internal/tenancy/datastore"
	"tenantplane/internal/tenancy/isolation"
	"tenantplane/internal/tenant/service"
	"tenantplane/internal/tenant/store"
	"tenantplane/migrations"
)

// infra holds the process-wide connections. Every field except transport is
// optional and nil when its configuration is empty.
type infra struct {
	pool      *database.Pool
	redis     *redisclient.Client
	mongo     *mongo.Client
	docs      docstore.Database
	cache     *connections.Cache
	transport events.Transport
}

// connect opens every configured backend and registers its readiness check.
// On failure whatever was already opened is closed.
func connect(ctx context.Context, cfg config.Config, reg prometheus.Registerer, checks *health.Handler, log *slog.Logger) (*infra, error) {
	in := &infra{}
	connected := false
	defer func() {
		if !connected {
			in.close(log)
		}
	}()

	var err error

	if in.pool, err = database.New(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if in.pool != nil {
		reg.MustRegister(in.pool.Collector())
		checks.RegisterCheck("postgres", in.pool.Health)
		log.Info("control plane store", "backend", "postgres")
		if cfg.Database.Migrate {
			applied, err := migrations.Apply(ctx, in.pool.DB())
			if err != nil {
				return nil, err
			}
			log.Info("migrations applied", "versions", applied)
		}
	} else {
		log.Warn("DATABASE_URL is empty; tenants are kept in memory")
	}

	if in.redis, err = redisclient.New(ctx, cfg.Redis, reg); err != nil {
		return nil, err
	}
	if in.redis != nil {
		checks.RegisterCheck("redis", in.redis.Health)
	}

	if cfg.Mongo.URI != "" {
		in.mongo, err = mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err = in.mongo.Ping(ctx, readpref.Primary()); err != nil {
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		in.docs = docstore.NewMongo(in.mongo.Database(cfg.Mongo.Database))
		checks.RegisterCheck("mongo", func(ctx context.Context) error {
			return in.mongo.Ping(ctx, readpref.Primary())
		})
	} else {
		in.docs = docstore.NewMemory(cfg.Mongo.Database)
		log.Warn("MONGO_URI is empty; module data is kept in memory")
	}

	switch cfg.Transport {
	case config.TransportRedis:
		in.transport = events.NewRedisTransport(in.redis.Client, log)
	case config.TransportKafka:
		if in.transport, err = events.NewKafkaTransport(cfg.Kafka, log); err != nil {
			return nil, err
		}
		checks.RegisterCheck("kafka", kafka.NewHealthChecker(cfg.Kafka.Brokers).Check)
	default:
		in.transport = events.NewMemoryTransport(0)
	}
	connected = true
	return in, nil
}

// dataStore builds the isolation-enforcing router modules read and write
// through. Dedicated tenant stores are dialled only in HUB mode.
func (in *infra) dataStore(cfg config.Config, reg prometheus.Registerer, checks *health.Handler, log *slog.Logger) *datastore.Router {
	enforcer := isolation.New(
		modules.Schemas(hotel.Schemas, billing.Schemas, crm.Schemas),
		isolation.WithLogger(log),
		isolation.WithMetrics(isolation.NewMetrics(reg)),
	)
	if cfg.Mode == config.ModeHub {
		var dialer connections.Dialer = connections.MemoryDialer{}
		if in.mongo != nil {
			dialer = connections.NewMongoDialer(log, cfg.Mongo.Database)
		}
		in.cache = connections.New(dialer,
			connections.WithLogger(log),
			connections.WithMetrics(connections.NewMetrics(reg)),
		)
		checks.RegisterCheck("tenant_stores", in.cache.Health)
	}
	return datastore.NewRouter(cfg.Mode, in.docs, in.cache, enforcer)
}

func (in *infra) tenantStore() service.Store {
	if in.pool != nil {
		return store.NewPostgres(in.pool.DB())
	}
	return store.NewInMemory()
}

func (in *infra) auditStore() audit.Store {
	if in.pool != nil {
		return audit.NewPostgresStore(in.pool.DB())
	}
	return audit.NewInMemoryStore()
}

func (in *infra) close(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if in.cache != nil {
		if err := in.cache.Close(ctx); err != nil {
			log.Warn("tenant connection cache close failed", "error", err)
		}
	}
	if in.mongo != nil {
		if err := in.mongo.Disconnect(ctx); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if in.pool != nil {
		if err := in.pool.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}
}
