// Package consent assembles the consent manager from configuration. The
// manager itself lives in service; stores, caches and the event publisher
// live in their own subpackages.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"

	"consentlake/internal/consent/cache"
	"consentlake/internal/consent/events"
	"consentlake/internal/consent/metrics"
	"consentlake/internal/consent/service"
	"consentlake/internal/consent/store"
	"consentlake/internal/platform/config"
	"consentlake/internal/platform/database"
	"consentlake/internal/platform/redis"
)

// Deps are the shared clients a consent manager may use. Every field is
// optional.
type Deps struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Producer   events.Producer
}

// Manager is an assembled consent service plus the clients it owns.
type Manager struct {
	*service.Service

	DB    *database.Pool
	Redis *redis.Client
}

// Close releases the clients the manager opened.
func (m *Manager) Close() error {
	var errs []error
	if m.Redis != nil {
		errs = append(errs, m.Redis.Close())
	}
	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}
	return errors.Join(errs...)
}

// Open builds the consent manager selected by cfg.Consent.Store, with a Redis
// cache when REDIS_URL is set and change events when a producer and topic are
// both available.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Manager, error) {
	m := &Manager{}
	st, err := m.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithMetrics(metrics.New(deps.Registerer)),
	}

	rc, err := redis.New(ctx, cfg.Redis, deps.Registerer)
	if err != nil {
		m.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("consent cache: %w", err)
	}
	if rc != nil {
		m.Redis = rc
		opts = append(opts, service.WithCache(cache.NewRedis(rc.Client, cfg.Consent.CacheTTL)))
	} else {
		opts = append(opts, service.WithCache(cache.NewMemory(cfg.Consent.CacheTTL)))
	}

	if deps.Producer != nil && cfg.Consent.EventsTopic != "" {
		opts = append(opts, service.WithPublisher(events.NewPublisher(deps.Producer, cfg.Consent.EventsTopic)))
	}

	if pg, ok := st.(*store.PostgresStore); ok {
		opts = append(opts, service.WithStoreTx(postgresTx{store: pg}))
	}

	m.Service = service.NewService(st, deps.Logger, opts...)
	return m, nil
}

// postgresTx runs consent updates inside a Postgres transaction.
type postgresTx struct {
	store *store.PostgresStore
}

func (t postgresTx) RunInTx(ctx context.Context, userID string, fn func(ctx context.Context, st service.Store) error) error {
	return t.store.InUserTx(ctx, userID, func(ctx context.Context, tx *store.PostgresStore) error {
		return fn(ctx, tx)
	})
}

func (m *Manager) openStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	switch cfg.Consent.Store {
	case config.ConsentStorePostgres:
		pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("consent store: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("consent store: %w", err)
		}
		m.DB = pool
		return store.NewPostgres(pool.DB()), nil

	case config.ConsentStoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Lake.Region))
		if err != nil {
			return nil, fmt.Errorf("consent store: load aws config: %w", err)
		}
		return store.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Consent.TableName), nil

	default:
		return store.New(), nil
	}
}
