package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vkcalls/vkcall/internal/config"
)

// Open builds the backend selected by cfg.Type. authDir hosts the local
// files of the file, sqlite and git backends when no explicit path is set.
func Open(ctx context.Context, cfg config.StoreConfig, authDir string) (Backend, error) {
	storeType := strings.ToLower(strings.TrimSpace(cfg.Type))
	if storeType == "" {
		storeType = config.StoreFile
	}
	log.WithField("store", storeType).Debug("opening token store")

	switch storeType {
	case config.StoreMemory:
		return NewMemoryBackend(), nil
	case config.StoreFile:
		return NewFileBackend(localPath(cfg.Path, authDir, DefaultFileName)), nil
	case config.StoreSQLite:
		return NewSQLiteBackend(ctx, localPath(cfg.Path, authDir, DefaultSQLiteFileName))
	case config.StorePostgres:
		return NewPostgresBackend(ctx, PostgresStoreConfig{
			DSN:    cfg.DSN,
			Schema: cfg.Schema,
			Table:  cfg.Table,
		})
	case config.StoreRedis:
		return NewRedisBackend(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case config.StoreObject:
		return NewObjectBackend(ctx, ObjectStoreConfig{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.UseSSL,
		})
	case config.StoreGit:
		backend := NewGitBackend(localPath(cfg.Path, authDir, "git-store"), cfg.GitURL, cfg.GitUsername, cfg.GitToken)
		if err := backend.EnsureRepository(); err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("store: unknown store type %q", cfg.Type)
	}
}

func localPath(explicit, authDir, name string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return filepath.Clean(p)
	}
	return filepath.Join(authDir, name)
}
