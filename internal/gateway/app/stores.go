package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	archivecache "timemachine/internal/cache/archive"
	"timemachine/internal/gateway/config"
	archiverepo "timemachine/internal/gateway/repository/archive"
	"timemachine/internal/gateway/repository/registry"
)

type gatewayStores struct {
	registry *registry.Store
	archive  archiverepo.Store
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		stores, err := initPostgresStores(dsn, cfg)
		if err == nil {
			return stores, nil
		}
		log.Printf("stores: postgres unavailable (%v), falling back to local files", err)
	}
	return initFileStores(cfg)
}

func initPostgresStores(dsn string, cfg *config.Config) (*gatewayStores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach db: %w", err)
	}

	reg, err := registry.NewPostgres(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	arch, err := chooseArchiveStore(cfg, archiverepo.NewPostgresStore(db), "postgres")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("registry: postgres")
	return &gatewayStores{registry: reg, archive: arch}, nil
}

func initFileStores(cfg *config.Config) (*gatewayStores, error) {
	fs, err := archiverepo.NewFSStore(cfg.Archive.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fs archive store: %w", err)
	}
	arch, err := chooseArchiveStore(cfg, fs, "fs dir="+cfg.Archive.DataDir)
	if err != nil {
		return nil, err
	}
	log.Printf("registry: json file %s", cfg.Registry.Path)
	return &gatewayStores{
		registry: registry.New(cfg.Registry.Path),
		archive:  arch,
	}, nil
}

// chooseArchiveStore prefers object storage when the S3 block is complete,
// uses the backend matching the registry otherwise, and fronts either
// origin with the read-through cache.
func chooseArchiveStore(cfg *config.Config, fallback archiverepo.Store, fallbackLabel string) (archiverepo.Store, error) {
	origin := fallback
	label := fallbackLabel
	if s3cfg := cfg.Archive.S3; s3cfg.CanUseS3() {
		s3, err := archiverepo.NewS3Store(archiverepo.S3Config{
			Endpoint:  s3cfg.Endpoint,
			Region:    s3cfg.Region,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			Bucket:    s3cfg.Bucket,
			UseSSL:    s3cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 archive store: %w", err)
		}
		origin = s3
		label = fmt.Sprintf("s3 bucket=%s endpoint=%s", s3cfg.Bucket, s3cfg.Endpoint)
	}
	log.Printf("archive store: %s", label)
	return archivecache.NewCachedStore(origin, archivecache.DefaultCacheConfig()), nil
}
