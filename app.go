package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wozniakbe/nutriscan/internal/barcode"
	"github.com/wozniakbe/nutriscan/internal/cache"
	"github.com/wozniakbe/nutriscan/internal/foodfacts"
	"github.com/wozniakbe/nutriscan/internal/nutrition"
	"github.com/wozniakbe/nutriscan/internal/scan"
)

// cacheDocumentName keys the single cache document in DynamoDB.
const cacheDocumentName = "default"

// App bundles the components shared by the CLI commands and the HTTP server.
type App struct {
	Cache      *cache.Store
	Resolver   *scan.Resolver
	Pipeline   *scan.Pipeline
	Thresholds ThresholdStore

	closers []func()
}

// NewApp wires every component from cfg.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	var dynamo *dynamodb.Client
	if cfg.CacheBackend == "dynamodb" || cfg.PreferencesBackend == "dynamodb" {
		client, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo = client
	}

	backend, err := a.cacheBackend(ctx, cfg, dynamo)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cache.LoadOrEmpty(ctx, backend, logger)

	if cfg.PreferencesBackend == "dynamodb" {
		a.Thresholds = NewDynamoThresholdStore(dynamo, cfg.DynamoTableName)
	} else {
		a.Thresholds = newMemoryThresholdStore()
	}

	client := foodfacts.NewClient(cfg.FoodFactsBaseURL, cfg.FoodFactsTimeout, cfg.UserAgent, logger)
	a.Resolver = scan.NewResolver(a.Cache, client, logger)
	a.Pipeline = scan.NewPipeline(barcode.NewDecoder(logger), a.Resolver)
	return a, nil
}

func (a *App) cacheBackend(ctx context.Context, cfg Config, dynamo *dynamodb.Client) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryBackend(nil), nil
	case "dynamodb":
		return cache.NewDynamoBackend(dynamo, cfg.CacheTableName, cacheDocumentName), nil
	case "postgres":
		pool, err := cache.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := cache.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		return cache.NewPostgresBackend(pool), nil
	case "file":
		return cache.NewFileBackend(cfg.CacheFile), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// ThresholdsFor returns the user's stored thresholds, or defaults derived
// from the scan history when the user has none. stored reports which.
func (a *App) ThresholdsFor(ctx context.Context, userID string) (th nutrition.Thresholds, stored bool, err error) {
	if userID != "" {
		th, found, err := a.Thresholds.Get(ctx, userID)
		if err != nil {
			return nutrition.Thresholds{}, false, err
		}
		if found {
			return th, true, nil
		}
	}
	return nutrition.DefaultsFrom(a.Cache.Records()), false, nil
}

// Close releases external connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
