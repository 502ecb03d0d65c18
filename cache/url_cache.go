package cache

import (
	"fmt"
	"sync"
	"time"

	"Bt1QPlayer/model"
)

// DefaultURLTTL 已解析播放地址的默认有效期
const DefaultURLTTL = time.Hour

type urlEntry struct {
	url        string
	resolvedAt time.Time
}

// URLCache 进程内的播放地址缓存，按 (trackID, source) 存储
// 过期条目在读取时惰性删除，不设容量上限
type URLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]urlEntry
	now     func() time.Time
}

// NewURLCache 创建 URL 缓存，ttl <= 0 时使用默认值
func NewURLCache(ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &URLCache{
		ttl:     ttl,
		entries: make(map[string]urlEntry),
		now:     time.Now,
	}
}

func urlKey(trackID string, source model.Source) string {
	return fmt.Sprintf("%s:%s", source, trackID)
}

// Get 返回未过期的地址；过期条目会被删除并视为不存在
func (c *URLCache) Get(trackID string, source model.Source) (string, bool) {
	key := urlKey(trackID, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.resolvedAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.url, true
}

// Put 写入地址，覆盖旧值并刷新时间戳
func (c *URLCache) Put(trackID string, source model.Source, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[urlKey(trackID, source)] = urlEntry{url: url, resolvedAt: c.now()}
}

// SetClock 替换时间源，用于测试
func (c *URLCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Len 当前条目数（包含尚未被惰性清理的过期条目）
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
