package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/go-redis/redis/v8"
)

const (
	streamURLKey     = "stream:url:%s:%s" // String: source, trackID -> url
	defaultStreamTTL = 24 * time.Hour
	redisOpTimeout   = 5 * time.Second
)

// ErrNotConnected Redis 客户端未初始化
var ErrNotConnected = errors.New("Redis client not initialized")

// StreamURLStore 跨会话的播放地址缓存，只用于收藏过的歌曲
type StreamURLStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStreamURLStore 创建播放地址缓存
func NewStreamURLStore(client *redis.Client, ttl time.Duration) *StreamURLStore {
	if ttl <= 0 {
		ttl = defaultStreamTTL
	}
	return &StreamURLStore{client: client, ttl: ttl}
}

// Get 获取缓存的播放地址，未命中时返回 "", nil
func (s *StreamURLStore) Get(ctx context.Context, trackID string, source model.Source) (string, error) {
	if s.client == nil {
		return "", ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	key := fmt.Sprintf(streamURLKey, source, trackID)
	url, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get stream url: %w", err)
	}
	return url, nil
}

// Set 写入播放地址并设置过期时间
func (s *StreamURLStore) Set(ctx context.Context, trackID string, source model.Source, url string) error {
	if s.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	key := fmt.Sprintf(streamURLKey, source, trackID)
	if err := s.client.Set(ctx, key, url, s.ttl).Err(); err != nil {
		logger.Error("[StreamURLStore] 写入播放地址失败",
			logger.String("key", key),
			logger.ErrorField(err))
		return fmt.Errorf("failed to set stream url: %w", err)
	}

	logger.Debug("[StreamURLStore] 播放地址已缓存",
		logger.String("key", key),
		logger.Duration("expiration", s.ttl))
	return nil
}

// Delete 删除缓存的播放地址（例如取消收藏）
func (s *StreamURLStore) Delete(ctx context.Context, trackID string, source model.Source) error {
	if s.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	return s.client.Del(ctx, fmt.Sprintf(streamURLKey, source, trackID)).Err()
}

// TTL 返回剩余有效期，键不存在时返回负值
func (s *StreamURLStore) TTL(ctx context.Context, trackID string, source model.Source) (time.Duration, error) {
	if s.client == nil {
		return 0, ErrNotConnected
	}
	return s.client.TTL(ctx, fmt.Sprintf(streamURLKey, source, trackID)).Result()
}
