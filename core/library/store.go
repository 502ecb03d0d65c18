package library

import (
	"context"
	"fmt"

	"Bt1QPlayer/cache"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"
	"Bt1QPlayer/repository"
)

// Store 持久化存储协作者
// 组合 Redis 播放地址缓存与 MySQL 曲库（收藏、音源偏好），任一部分缺失时降级为空实现
type Store struct {
	urls          *cache.StreamURLStore
	repo          repository.LibraryRepository
	defaultSource model.Source
}

// NewStore 创建存储，urls 和 repo 都可以为 nil
func NewStore(urls *cache.StreamURLStore, repo repository.LibraryRepository, defaultSource model.Source) *Store {
	return &Store{urls: urls, repo: repo, defaultSource: defaultSource}
}

// GetCachedStreamURL 读取跨会话缓存的播放地址
func (s *Store) GetCachedStreamURL(ctx context.Context, trackID string, source model.Source) (string, error) {
	if s.urls == nil {
		return "", nil
	}
	return s.urls.Get(ctx, trackID, source)
}

// SetCachedStreamURL 写入跨会话缓存
func (s *Store) SetCachedStreamURL(ctx context.Context, trackID string, source model.Source, url string) error {
	if s.urls == nil {
		return nil
	}
	return s.urls.Set(ctx, trackID, source, url)
}

// IsLiked 是否为收藏歌曲
func (s *Store) IsLiked(ctx context.Context, trackID string, source model.Source) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	return s.repo.IsLiked(ctx, trackID, source)
}

// Like 收藏歌曲
func (s *Store) Like(ctx context.Context, track *model.Track) error {
	if s.repo == nil {
		return fmt.Errorf("library repository not configured")
	}
	return s.repo.LikeTrack(ctx, track)
}

// Unlike 取消收藏，同时清理缓存的播放地址
func (s *Store) Unlike(ctx context.Context, trackID string, source model.Source) error {
	if s.repo == nil {
		return fmt.Errorf("library repository not configured")
	}
	if err := s.repo.UnlikeTrack(ctx, trackID, source); err != nil {
		return err
	}
	if s.urls != nil {
		if err := s.urls.Delete(ctx, trackID, source); err != nil {
			logger.Warn("[Library] 清理播放地址缓存失败",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
		}
	}
	return nil
}

// ListLiked 分页列出收藏歌曲
func (s *Store) ListLiked(ctx context.Context, limit, offset int) ([]*model.LikedTrack, error) {
	if s.repo == nil {
		return []*model.LikedTrack{}, nil
	}
	return s.repo.ListLiked(ctx, limit, offset)
}

// GetMusicSourcePreference 返回用户偏好的音源，未设置或无效时返回默认音源
func (s *Store) GetMusicSourcePreference(ctx context.Context) (model.Source, error) {
	if s.repo == nil {
		return s.defaultSource, nil
	}
	value, err := s.repo.GetPreference(ctx, model.PrefMusicSource)
	if err != nil {
		return s.defaultSource, err
	}
	if value == "" {
		return s.defaultSource, nil
	}
	src, err := model.ParseSource(value)
	if err != nil {
		logger.Warn("[Library] 音源偏好无效，使用默认音源",
			logger.String("value", value),
			logger.String("default", string(s.defaultSource)))
		return s.defaultSource, nil
	}
	return src, nil
}

// SetMusicSourcePreference 设置音源偏好
func (s *Store) SetMusicSourcePreference(ctx context.Context, source model.Source) error {
	if s.repo == nil {
		return fmt.Errorf("library repository not configured")
	}
	return s.repo.SetPreference(ctx, model.PrefMusicSource, string(source))
}
