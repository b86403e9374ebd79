package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"listings-api/config"
	"listings-api/logging"
	"listings-api/normalize"
	"listings-api/publishers"
	"listings-api/repositories"
	"listings-api/services"
	"listings-api/storage"
	"listings-api/utils"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	repos     repositories.Repositories
	cache     repositories.CacheRepository
	publisher *publishers.RabbitMQPublisher
	closers   []func(context.Context) error

	auth        services.AuthService
	listings    services.ListingService
	imports     services.ImportService
	memos       services.MemoService
	images      services.ImageService
	collections services.CollectionService
}

// loadConfig reads the config named by --config. The file is optional
// unless the flag was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openDB connects to the database only; migrate and user need nothing else.
func openDB(cmd *cobra.Command) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := repositories.OpenDatabase(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

// newApp builds every service. Close releases what it opened.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	// 1. Config, logger, database
	cfg, logger, db, err := openDB(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db, repos: repositories.NewRepositories(db)}

	// 2. Normalization rules
	rules, err := normalize.LoadRules(cfg.Normalization.RulesFile)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	n := normalize.New(rules)

	// 3. Image store
	store, closeStore, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	// 4. Cache and events
	a.cache = repositories.NewCacheRepository(repositories.CacheOptions{
		LocalTTL:      cfg.Cache.LocalTTL,
		LocalMaxSize:  cfg.Cache.LocalMaxSize,
		MemcachedHost: cfg.Cache.MemcachedHost,
		MemcachedTTL:  cfg.Cache.MemcachedTTL,
	}, logger)

	var publisher services.EventPublisher = services.NoopPublisher{}
	if cfg.Messaging.RabbitMQURL != "" {
		a.publisher, err = publishers.NewRabbitMQPublisher(cfg.Messaging.RabbitMQURL, cfg.Messaging.Exchange, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		publisher = a.publisher
	}
	notifier := services.NewChangeNotifier(a.cache, publisher, logger)

	// 5. Services
	jwt := utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.auth = services.NewAuthService(a.repos.Users, jwt, logger)
	a.listings = services.NewListingService(a.repos, a.cache, store, notifier, n, logger)
	a.imports = services.NewImportService(a.repos, store, notifier, n, logger)
	a.memos = services.NewMemoService(a.repos.Listings, notifier, n, logger)
	a.images = services.NewImageService(a.repos, store, notifier, n, logger)
	a.collections = services.NewCollectionService(a.repos, notifier, logger)
	return a, nil
}

// Close releases the broker, the image store and the database.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// printJSON writes v indented, the output format of the batch commands.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
