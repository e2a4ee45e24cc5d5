package main

import (
	"context"
	"flag"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"orpheus/internal/adapters/config"
	pgrepo "orpheus/internal/repository/postgres"
	"orpheus/internal/seeds"
	devseeds "orpheus/internal/seeds/dev"
	testseeds "orpheus/internal/seeds/test"
	"orpheus/pkg/crypto"
	"orpheus/pkg/logger"
)

func main() {
	env := flag.String("env", "dev", "Environment: dev, test")
	dryRun := flag.Bool("dry-run", false, "List seed functions without executing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	log := logger.Get()

	log.Infow("Starting seeder",
		"environment", *env,
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	seedFuncs := getSeedFunctions(*env)
	if len(seedFuncs) == 0 {
		log.Warnw("No seeds available for environment", "environment", *env)
		return
	}

	log.Infow("Found seed functions", "environment", *env, "count", len(seedFuncs))

	if *dryRun {
		log.Info("✅ Dry-run mode: seed functions validated")
		return
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize encryptor: %v", err)
	}

	deps := &seeds.Deps{
		Callers:   pgrepo.NewCallerRepository(db),
		Encryptor: encryptor,
		Log:       log,
	}

	ctx := context.Background()
	for i, seedFunc := range seedFuncs {
		log.Infow("Executing seed", "step", i+1, "total", len(seedFuncs))

		if err := seedFunc(ctx, deps); err != nil {
			log.Errorw("Failed to execute seed",
				"step", i+1,
				"error", err,
			)
			return
		}

		log.Infow("✅ Seed completed", "step", i+1)
	}

	log.Info("✅ All seeds applied successfully")
}

// getSeedFunctions returns seed functions for the given environment.
// Order matters, dependencies should be seeded first.
func getSeedFunctions(env string) []seeds.Func {
	switch env {
	case "dev":
		return []seeds.Func{
			devseeds.SeedCallers,
		}
	case "test":
		return []seeds.Func{
			testseeds.SeedCallers,
		}
	default:
		return nil
	}
}
