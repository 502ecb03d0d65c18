package cmd

import (
	"context"
	"fmt"

	"Bt1QPlayer/cache"
	"Bt1QPlayer/config"
	"Bt1QPlayer/core/endpoint"
	"Bt1QPlayer/core/library"
	"Bt1QPlayer/core/resolver"
	"Bt1QPlayer/core/source"
	"Bt1QPlayer/db"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"
	"Bt1QPlayer/repository"
	"Bt1QPlayer/storage"
)

// app 命令共用的组件
type app struct {
	endpoints *endpoint.Registry
	sources   *source.Registry
	urls      *cache.URLCache
	library   *library.Store
	resolver  *resolver.Resolver

	closers []func() error
}

// candidates 将端点配置转换为注册表所需的格式
func candidates(ec config.EndpointsConfig) map[model.Source][]model.EndpointCandidate {
	out := make(map[model.Source][]model.EndpointCandidate, len(ec))
	for src, sc := range ec {
		out[src] = sc.Endpoints
	}
	return out
}

// newApp 装配解析所需的组件
// Redis、MySQL、MinIO 任一不可用时只记录警告，对应功能降级
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	endpointsCfg, err := config.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load endpoints: %w", err)
	}
	defaultSource, err := model.ParseSource(cfg.DefaultSource)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SOURCE: %w", err)
	}

	a := &app{
		endpoints: endpoint.NewRegistry(candidates(endpointsCfg)),
		urls:      cache.NewURLCache(cfg.URLCacheTTL),
	}

	var local source.Local
	if minioClient, err := storage.NewClient(cfg); err != nil {
		logger.Warn("[App] MinIO 不可用，本地曲库解析已禁用", logger.ErrorField(err))
	} else {
		if err := storage.EnsureBucket(ctx, minioClient, cfg.MinioBucket, cfg.MinioRegion); err != nil {
			logger.Warn("[App] 存储桶检查失败", logger.String("bucket", cfg.MinioBucket), logger.ErrorField(err))
		}
		local = source.NewMinioLocal(minioClient, cfg.MinioBucket, cfg.LocalURLExpiry)
	}
	a.sources = source.NewRegistryFromConfig(endpointsCfg, local)

	var streamURLs *cache.StreamURLStore
	if rdb, err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("[App] Redis 不可用，跨会话播放地址缓存已禁用", logger.ErrorField(err))
	} else {
		streamURLs = cache.NewStreamURLStore(rdb, cfg.PersistentURLTTL)
		a.closers = append(a.closers, db.CloseRedis)
	}

	var repo repository.LibraryRepository
	if gdb, err := db.ConnectGormDB(cfg); err != nil {
		logger.Warn("[App] MySQL 不可用，收藏与音源偏好已禁用", logger.ErrorField(err))
	} else if err := db.AutoMigrate(gdb); err != nil {
		logger.Warn("[App] 数据表迁移失败，收藏与音源偏好已禁用", logger.ErrorField(err))
		db.CloseGormDB()
	} else {
		repo = repository.NewGormLibraryRepository(gdb)
		a.closers = append(a.closers, db.CloseGormDB)
	}

	a.library = library.NewStore(streamURLs, repo, defaultSource)
	a.resolver = resolver.New(a.endpoints, a.sources, a.urls, resolver.Options{
		Timeout:   cfg.ResolveTimeout,
		RateLimit: cfg.BackendRateLimit,
		Store:     a.library,
	})

	logger.Info("[App] 组件初始化完成",
		logger.Int("sources", len(endpointsCfg)),
		logger.Bool("local", local != nil),
		logger.Bool("urlStore", streamURLs != nil),
		logger.Bool("library", repo != nil))
	return a, nil
}

// reloadEndpoints 热加载端点配置，已有的最近成功记录在端点仍存在时保留
func (a *app) reloadEndpoints(ec config.EndpointsConfig) {
	for src, sc := range ec {
		a.endpoints.Replace(src, sc.Endpoints)
	}
	a.sources.Load(ec)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("[App] 关闭连接失败", logger.ErrorField(err))
		}
	}
}
