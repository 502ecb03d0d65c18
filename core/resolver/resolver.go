package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"Bt1QPlayer/cache"
	"Bt1QPlayer/core/endpoint"
	"Bt1QPlayer/core/source"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout 单个端点请求的超时时间
	DefaultTimeout = 8 * time.Second
	maxBodySize    = 4 << 20
	userAgent      = "Bt1QPlayer/1.0"
)

// ErrUnresolvable 所有端点和音质档位都无法得到播放地址
var ErrUnresolvable = errors.New("stream unresolvable")

// PersistentStore 跨会话存储（收藏歌曲的播放地址缓存、音源偏好）
type PersistentStore interface {
	GetCachedStreamURL(ctx context.Context, trackID string, source model.Source) (string, error)
	SetCachedStreamURL(ctx context.Context, trackID string, source model.Source, url string) error
	IsLiked(ctx context.Context, trackID string, source model.Source) (bool, error)
	GetMusicSourcePreference(ctx context.Context) (model.Source, error)
}

// Options 解析器可选配置
type Options struct {
	Timeout    time.Duration   // 单端点超时，默认 8s
	RateLimit  float64         // 每个音源每秒请求数，0 表示不限制
	HTTPClient *http.Client    // 默认使用无整体超时的客户端，超时由 context 控制
	Store      PersistentStore // 可为 nil
}

// Resolver 播放地址解析器
// 按端点顺序逐个尝试最高音质，全部失败后再以保证直链的低音质重试一轮
type Resolver struct {
	endpoints  *endpoint.Registry
	sources    *source.Registry
	urls       *cache.URLCache
	store      PersistentStore
	httpClient *http.Client
	timeout    time.Duration

	rateLimit rate.Limit
	limitMu   sync.Mutex
	limiters  map[model.Source]*rate.Limiter

	group singleflight.Group
}

// New 创建解析器
func New(endpoints *endpoint.Registry, sources *source.Registry, urls *cache.URLCache, opts Options) *Resolver {
	r := &Resolver{
		endpoints:  endpoints,
		sources:    sources,
		urls:       urls,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		rateLimit:  rate.Inf,
		limiters:   make(map[model.Source]*rate.Limiter),
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if opts.RateLimit > 0 {
		r.rateLimit = rate.Limit(opts.RateLimit)
	}
	return r
}

// Resolve 解析歌曲的播放地址
// 同一首歌的并发解析会合并为一次
func (r *Resolver) Resolve(ctx context.Context, track model.Track) (string, error) {
	src := track.Source
	if src == "" {
		src = r.preferredSource(ctx)
		track.Source = src
	}

	if src == model.PrimaryLocalSource {
		return r.resolveLocal(ctx, track)
	}

	if url, ok := r.urls.Get(track.ID, src); ok {
		logger.Debug("[Resolver] 命中 URL 缓存",
			logger.String("trackId", track.ID),
			logger.String("source", string(src)))
		return url, nil
	}

	// 合并后的解析不随任何一个调用方取消，单次请求仍受 timeout 约束；
	// 调用方取消时只放弃等待，不影响其他等待同一首歌的调用方
	key := string(src) + ":" + track.ID
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.resolveRemote(context.WithoutCancel(ctx), track)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Resolver) preferredSource(ctx context.Context) model.Source {
	if r.store == nil {
		return model.SourceNetease
	}
	src, err := r.store.GetMusicSourcePreference(ctx)
	if err != nil {
		logger.Warn("[Resolver] 读取音源偏好失败", logger.ErrorField(err))
	}
	if src == "" {
		src = model.SourceNetease
	}
	return src
}

func (r *Resolver) resolveLocal(ctx context.Context, track model.Track) (string, error) {
	local := r.sources.Local()
	if local == nil {
		return "", fmt.Errorf("%w: local source not configured", ErrUnresolvable)
	}
	url, err := local.DirectURL(ctx, track)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return url, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, track model.Track) (string, error) {
	src := track.Source

	if url := r.persistedURL(ctx, track); url != "" {
		r.urls.Put(track.ID, src, url)
		return url, nil
	}

	remote, ok := r.sources.Remote(src)
	if !ok {
		return "", fmt.Errorf("%w: no backend for source %q", ErrUnresolvable, src)
	}

	eps := r.endpoints.OrderedEndpoints(src)
	if len(eps) == 0 {
		return "", fmt.Errorf("%w: no endpoints for source %q", ErrUnresolvable, src)
	}

	start := time.Now()
	fallback := remote.FallbackQuality()

	// 第一轮：每个端点声明的最高音质；第二轮：保证直链的音质
	for phase := 0; phase < 2; phase++ {
		for _, ep := range eps {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			quality := ep.MaxQuality
			if quality == "" {
				quality = fallback
			}
			if phase == 1 {
				if fallback == "" || fallback == quality {
					continue // 与第一轮请求完全相同，无需重试
				}
				quality = fallback
			}

			url, err := r.attempt(ctx, remote, ep, track.ID, quality)
			if err != nil {
				logger.Warn("[Resolver] 端点尝试失败",
					logger.String("trackId", track.ID),
					logger.String("source", string(src)),
					logger.String("endpoint", ep.Name),
					logger.String("quality", quality),
					logger.ErrorField(err))
				continue
			}

			r.endpoints.RecordSuccess(src, ep.Name)
			r.urls.Put(track.ID, src, url)
			r.persist(ctx, track, url)

			logger.Info("[Resolver] 解析成功",
				logger.String("trackId", track.ID),
				logger.String("source", string(src)),
				logger.String("endpoint", ep.Name),
				logger.String("quality", quality),
				logger.Duration("elapsed", time.Since(start)))
			return url, nil
		}
	}

	logger.Error("[Resolver] 所有端点均失败",
		logger.String("trackId", track.ID),
		logger.String("source", string(src)),
		logger.Int("endpoints", len(eps)))
	return "", fmt.Errorf("%w: %s/%s", ErrUnresolvable, src, track.ID)
}

// attempt 对单个端点发起一次请求，超时、非 2xx、无法解析都视为失败
func (r *Resolver) attempt(ctx context.Context, remote source.Remote, ep model.EndpointCandidate, trackID, quality string) (string, error) {
	if err := r.limiter(remote.Source()).Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, remote.RequestURL(ep, trackID, quality), nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, */*")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API返回错误状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	return ExtractURL(body)
}

func (r *Resolver) limiter(src model.Source) *rate.Limiter {
	r.limitMu.Lock()
	defer r.limitMu.Unlock()

	l, ok := r.limiters[src]
	if !ok {
		l = rate.NewLimiter(r.rateLimit, 1)
		r.limiters[src] = l
	}
	return l
}

func (r *Resolver) persistedURL(ctx context.Context, track model.Track) string {
	if r.store == nil {
		return ""
	}
	url, err := r.store.GetCachedStreamURL(ctx, track.ID, track.Source)
	if err != nil {
		logger.Warn("[Resolver] 读取持久化播放地址失败",
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
		return ""
	}
	return url
}

// persist 只为收藏歌曲写入跨会话缓存
func (r *Resolver) persist(ctx context.Context, track model.Track, url string) {
	if r.store == nil {
		return
	}
	liked, err := r.store.IsLiked(ctx, track.ID, track.Source)
	if err != nil || !liked {
		return
	}
	if err := r.store.SetCachedStreamURL(ctx, track.ID, track.Source, url); err != nil {
		logger.Warn("[Resolver] 写入持久化播放地址失败",
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
	}
}
