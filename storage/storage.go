// Package storage keeps listing image blobs. Image metadata lives in the
// relational database; stores only see opaque keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"listings-api/config"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("stored file not found")

// ImageStore saves and serves image blobs.
type ImageStore interface {
	// Save stores the content and returns the key it can be opened by.
	// name is only a hint (its extension is kept where the backend can).
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg. The returned close function
// releases backend connections.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ImageStore, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		store, err := NewLocalStore(cfg.ImageDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("image store ready", zap.String("backend", "local"), zap.String("dir", cfg.ImageDir))
		return store, func(context.Context) error { return nil }, nil

	case config.StorageGridFS:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewGridFSStore(client.Database(cfg.MongoDatabase), cfg.GridFSBucket)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		logger.Info("image store ready",
			zap.String("backend", "gridfs"),
			zap.String("database", cfg.MongoDatabase),
			zap.String("bucket", cfg.GridFSBucket))
		return store, client.Disconnect, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
