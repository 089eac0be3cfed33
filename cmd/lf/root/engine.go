package root

import (
	"context"
	"os"

	"lifeforge/internal/config"
	"lifeforge/internal/engine"
	"lifeforge/internal/storage"
)

func loadConfig() (config.Config, error) {
	path := os.Getenv("LIFEFORGE_CONFIG")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	return config.Load(path)
}

// openEngine wires config, storage and the engine for one command run.
func openEngine(ctx context.Context) (*engine.Engine, config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	path, err := storage.ResolveDBPath()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	log := newLogger()
	eng := engine.New(db, cfg, log)
	if err := eng.Load(ctx); err != nil {
		_ = db.Close()
		return nil, config.Config{}, nil, err
	}

	cleanup := func() {
		_ = log.Sync()
		_ = db.Close()
	}
	return eng, cfg, cleanup, nil
}
