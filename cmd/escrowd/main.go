package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path"

	"github.com/arenalabs/escrowd/src/common"
	"github.com/arenalabs/escrowd/src/escrow"
	"github.com/arenalabs/escrowd/src/payouts"
	"github.com/arenalabs/escrowd/src/postgres"
	"github.com/arenalabs/escrowd/src/queryserver"
	"github.com/arenalabs/escrowd/src/service"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type serviceConfig struct {
	common.CommonConfig `yaml:",inline"`
	Pipeline            payouts.PipelineConfig `yaml:"pipeline"`
}

func main() {
	pwd, _ := os.Getwd()
	fullPath := path.Join(pwd, "config.yaml")
	log.Printf("loading config @ `%s`", fullPath)
	rawCfg, err := os.ReadFile(fullPath)
	if err != nil {
		log.Printf("config file not found: %s", err)
		os.Exit(1)
	}
	cfg := serviceConfig{}
	if err := yaml.Unmarshal(rawCfg, &cfg); err != nil {
		log.Printf("failed parsing config file: %s", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.QueryPort, "query", cfg.QueryPort, "port to serve escrow queries on, default `:8080`")
	flag.StringVar(&cfg.AdminPort, "admin", cfg.AdminPort, "port to serve the host-facing admin api on, default `:8081`")
	flag.StringVar(&cfg.PromPort, "prom", cfg.PromPort, "address to serve prom stats, default `:2112`")
	flag.StringVar(&cfg.HealthCheckPort, "hcp", cfg.HealthCheckPort, `(rarely used) if defined will expose a health check on /readyz, default ""`)
	flag.StringVar(&cfg.PostgresConfig, "pg", cfg.PostgresConfig, `config string for the postgres connection"`)
	flag.StringVar(&cfg.RedisConfig, "redis", cfg.RedisConfig, `config string for the redis connection"`)

	flag.Parse()

	log.Println("----------------------------------")
	log.Printf("initializing escrowd")
	log.Printf("\tquery:         %s", cfg.QueryPort)
	log.Printf("\tadmin:         %s", cfg.AdminPort)
	log.Printf("\tprom:          %s", cfg.PromPort)
	log.Printf("\thealth check:  %s", cfg.HealthCheckPort)
	log.Printf("\tpostgres:      %s", cfg.PostgresConfig)
	log.Printf("\tredis:         %s", cfg.RedisConfig)
	log.Println("----------------------------------")

	postgres.ConfigurePostgres(cfg.PostgresConfig)
	logger := common.ConfigureZap(zap.InfoLevel)
	if err := postgres.InitSchema(context.Background()); err != nil {
		logger.Warn("schema init failed, assuming managed migrations", zap.Error(err))
	}

	var rd *redis.Client
	if cfg.RedisConfig != "" {
		rd, err = configureRedis(cfg.RedisConfig)
		if err != nil {
			logger.Error("failed connecting to redis, snapshot cache disabled", zap.Error(err))
			rd = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := escrow.NewRegistry()
	if err := rehydrate(ctx, registry, logger); err != nil {
		logger.Error("failed rehydrating escrows from postgres", zap.Error(err))
	}

	go func() {
		payer := payouts.NewMockPayer()
		if err := payouts.StartPipeline(ctx, cfg.Pipeline, payer, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("payout pipeline stopped", zap.Error(err))
		}
	}()

	var cache *queryserver.SnapshotCache
	if rd != nil {
		cache = queryserver.NewSnapshotCache(rd)
	}
	svc := service.NewService(registry, cache, logger)
	go func() {
		if err := svc.ListenAndServe(ctx, cfg.AdminPort); err != nil {
			logger.Error("admin server stopped", zap.Error(err))
		}
	}()

	server := queryserver.NewServer(registry, rd, logger)
	if err := server.ListenAndServe(ctx, queryserver.ServerConfig{
		ListenPort:      cfg.QueryPort,
		PromPort:        cfg.PromPort,
		HealthCheckPort: cfg.HealthCheckPort,
	}); err != nil {
		logger.Error("query server stopped", zap.Error(err))
	}
}

func configureRedis(path string) (*redis.Client, error) {
	rd := redis.NewClient(&redis.Options{
		Addr: path,
		DB:   0, // use default DB
	})
	if err := rd.Ping(context.Background()); err.Err() != nil {
		return nil, errors.Wrap(err.Err(), "failed to ping redis")
	}
	return rd, nil
}

// rehydrate rebuilds unsettled escrows from the durable store by replaying
// their deposit journals. Settled escrows don't come back into the live
// registry; their outstanding credits are flushed straight from the
// payouts table by the pipeline.
func rehydrate(ctx context.Context, registry *escrow.Registry, logger *zap.Logger) error {
	for _, status := range []escrow.Status{escrow.StatusOpen, escrow.StatusAdminLocked} {
		rows, err := postgres.GetEscrowsByStatus(ctx, string(status), 4096)
		if err != nil {
			return errors.Wrapf(err, "failed fetching %s escrows", status)
		}
		for _, row := range rows {
			_, dues, err := postgres.GetEscrow(ctx, row.ID)
			if err != nil {
				logger.Error("failed loading escrow dues", zap.String("escrow", row.ID), zap.Error(err))
				continue
			}
			e, err := registry.Restore(row.ID, row.Competition, row.Owner, dues)
			if err != nil {
				logger.Error("failed recreating escrow", zap.String("escrow", row.ID), zap.Error(err))
				continue
			}
			journal, err := postgres.GetDeposits(ctx, row.ID)
			if err != nil {
				logger.Error("failed loading deposit journal", zap.String("escrow", row.ID), zap.Error(err))
				continue
			}
			for party, deltas := range journal {
				for _, delta := range deltas {
					if err := e.RecordDeposit(party, delta); err != nil {
						logger.Error("failed replaying deposit",
							zap.String("escrow", row.ID), zap.String("party", string(party)), zap.Error(err))
					}
				}
			}
			if status == escrow.StatusAdminLocked {
				if err := e.SetLock(row.Owner, true); err != nil {
					logger.Error("failed restoring admin lock", zap.String("escrow", row.ID), zap.Error(err))
				}
			}
			logger.Info("rehydrated escrow", zap.String("escrow", row.ID), zap.String("competition", row.Competition))
		}
	}
	return rehydratePresets(ctx, registry, logger)
}

// rehydratePresets replays every owner's snapshot log into the in-memory
// preset store, clears included.
func rehydratePresets(ctx context.Context, registry *escrow.Registry, logger *zap.Logger) error {
	owners, err := postgres.GetSnapshotOwners(ctx)
	if err != nil {
		return errors.Wrap(err, "failed listing snapshot owners")
	}
	presets := registry.Presets()
	for _, owner := range owners {
		heights, dists, err := postgres.GetSnapshotLog(ctx, owner)
		if err != nil {
			logger.Error("failed loading snapshot log", zap.String("owner", string(owner)), zap.Error(err))
			continue
		}
		for i, height := range heights {
			if dists[i] == nil {
				// a leading clear has nothing to remove; ignore that case
				_ = presets.Remove(owner, height)
				continue
			}
			if err := presets.Set(owner, *dists[i], height); err != nil {
				logger.Error("failed replaying snapshot",
					zap.String("owner", string(owner)), zap.Uint64("height", height), zap.Error(err))
			}
		}
	}
	return nil
}
