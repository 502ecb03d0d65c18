package source

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"Bt1QPlayer/config"
	"Bt1QPlayer/model"
)

// Remote 远程音源：通过镜像端点的 HTTP 接口获取播放地址
type Remote interface {
	Source() model.Source
	// RequestURL 构造某个端点在指定音质下的请求地址
	RequestURL(ep model.EndpointCandidate, trackID, quality string) string
	// FallbackQuality 保证返回直链（非分片 manifest）的音质档位
	FallbackQuality() string
}

// Local 本地音源：播放地址在本地同步生成，无需缓存
type Local interface {
	Source() model.Source
	DirectURL(ctx context.Context, track model.Track) (string, error)
}

// TemplateRemote 基于路径模板的远程音源
// 模板中的 {id} 和 {quality} 会被替换为转义后的值
type TemplateRemote struct {
	source          model.Source
	path            string
	fallbackQuality string
}

// NewTemplateRemote 创建模板音源
func NewTemplateRemote(source model.Source, path, fallbackQuality string) *TemplateRemote {
	return &TemplateRemote{source: source, path: path, fallbackQuality: fallbackQuality}
}

func (t *TemplateRemote) Source() model.Source { return t.source }

func (t *TemplateRemote) FallbackQuality() string { return t.fallbackQuality }

// RequestURL 拼接端点基地址与路径模板
func (t *TemplateRemote) RequestURL(ep model.EndpointCandidate, trackID, quality string) string {
	r := strings.NewReplacer(
		"{id}", url.QueryEscape(trackID),
		"{quality}", url.QueryEscape(quality),
	)
	return strings.TrimRight(ep.BaseURL, "/") + r.Replace(t.path)
}

// Registry 音源注册表
type Registry struct {
	mu      sync.RWMutex
	remotes map[model.Source]Remote
	local   Local
}

// NewRegistry 创建音源注册表
func NewRegistry() *Registry {
	return &Registry{remotes: make(map[model.Source]Remote)}
}

// NewRegistryFromConfig 根据端点配置注册所有远程音源
func NewRegistryFromConfig(cfg config.EndpointsConfig, local Local) *Registry {
	r := NewRegistry()
	r.Load(cfg)
	if local != nil {
		r.SetLocal(local)
	}
	return r
}

// Load 用配置替换远程音源定义（热加载时调用）
func (r *Registry) Load(cfg config.EndpointsConfig) {
	for src, sc := range cfg {
		r.Register(NewTemplateRemote(src, sc.Path, sc.FallbackQuality))
	}
}

// Register 注册远程音源
func (r *Registry) Register(remote Remote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[remote.Source()] = remote
}

// SetLocal 设置本地音源
func (r *Registry) SetLocal(local Local) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = local
}

// Remote 获取指定的远程音源
func (r *Registry) Remote(source model.Source) (Remote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	remote, ok := r.remotes[source]
	return remote, ok
}

// Local 获取本地音源，未配置时为 nil
func (r *Registry) Local() Local {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}
