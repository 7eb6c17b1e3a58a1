package main

import (
	"context"
	"fmt"
	"time"

	"task-manager/config"
	"task-manager/logging"
	"task-manager/repositories"
	"task-manager/services"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// store bundles the repositories of the configured driver behind circuit breakers.
type store struct {
	Tasks repositories.TaskRepository
	Users repositories.UserRepository
	close func(ctx context.Context) error
}

func (s *store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	var (
		tasks repositories.TaskRepository
		users repositories.UserRepository
		st    = &store{}
	)

	switch cfg.StoreDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", cfg.MongoURI)

		db := client.Database(cfg.MongoDBName)
		taskRepo := repositories.NewMongoTaskRepository(db)
		userRepo := repositories.NewMongoUserRepository(db)
		if err := taskRepo.EnsureIndexes(connectCtx); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		if err := userRepo.EnsureIndexes(connectCtx); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		logging.Logger.Infof("Event ID: DB_COLLECTION_SET, Description: Using MongoDB database: %s", cfg.MongoDBName)

		tasks, users = taskRepo, userRepo
		st.close = client.Disconnect

	case config.DriverSQLite:
		db, err := repositories.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Using SQLite database at %s.", cfg.SQLitePath)

		tasks = repositories.NewSQLiteTaskRepository(db)
		users = repositories.NewSQLiteUserRepository(db)
		st.close = func(context.Context) error { return db.Close() }

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	st.Tasks = repositories.NewBreakerTaskRepository(tasks,
		repositories.NewStoreBreaker("tasks-store", cfg.BreakerMaxFailures, cfg.BreakerTimeout))
	st.Users = repositories.NewBreakerUserRepository(users,
		repositories.NewStoreBreaker("users-store", cfg.BreakerMaxFailures, cfg.BreakerTimeout))
	return st, nil
}

// setup loads the configuration and initialises logging.
func setup(systemName string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.InitLogger(logging.Options{
		SystemName: systemName,
		Filename:   cfg.LogFile,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Console:    true,
	})
	return cfg, nil
}

// newUserService builds the identity directory, loading the password
// blacklist when one is configured.
func newUserService(cfg *config.Config, st *store) (*services.UserService, error) {
	userService := services.NewUserService(st.Users, st.Tasks, services.NewJWTService(cfg.JWTSecret, cfg.TokenTTL), cfg.AdminInviteToken)
	if cfg.PasswordBlacklistFile == "" {
		return userService, nil
	}

	blackList, err := services.LoadBlackList(cfg.PasswordBlacklistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load password blacklist: %w", err)
	}
	logging.Logger.Infof("Event ID: BLACKLIST_LOADED, Description: loaded %d blacklisted passwords", len(blackList))
	userService.BlackList = blackList
	return userService, nil
}
