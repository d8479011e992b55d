package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	appconfig "github.com/brickline/realty-leads/internal/config"
	"github.com/brickline/realty-leads/internal/leads"
	"github.com/brickline/realty-leads/pkg/logging"
)

// LeadStore is the repository chosen by LEAD_STORE plus its lifecycle hooks.
type LeadStore struct {
	Repo  leads.Repository
	Ping  func(ctx context.Context) error
	Close func()
}

// BuildLeadRepository opens the configured lead store.
func BuildLeadRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*LeadStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch kind := strings.ToLower(strings.TrimSpace(cfg.LeadStore)); kind {
	case "", "memory":
		logger.Warn("using in-memory lead store; data is lost on restart")
		return &LeadStore{
			Repo:  leads.NewInMemoryRepository(),
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for postgres lead store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("lead store connected", "store", "postgres")
		return &LeadStore{Repo: leads.NewPostgresRepository(pool), Ping: pool.Ping, Close: pool.Close}, nil

	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("bootstrap: MONGODB_URI is required for mongo lead store")
		}
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI).SetTimeout(cfg.StoreTimeout))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect mongo: %w", err)
		}
		ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		if err := ping(ctx); err != nil {
			closeFn()
			return nil, fmt.Errorf("bootstrap: ping mongo: %w", err)
		}
		repo := leads.NewMongoRepository(client.Database(cfg.MongoDatabase), cfg.StoreTimeout)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo index creation failed", "error", err)
		}
		logger.Info("lead store connected", "store", "mongo", "database", cfg.MongoDatabase)
		return &LeadStore{Repo: repo, Ping: ping, Close: closeFn}, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown LEAD_STORE %q", kind)
	}
}
