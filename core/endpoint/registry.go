package endpoint

import (
	"sync"

	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"
)

// Registry 端点注册表
// 每个音源维护一组按声明顺序排列的镜像端点，并记住最近一次成功的端点。
// 失败不做任何记录：镜像可用性变化很快，下次按原优先级重试即可。
// 状态只保存在内存中，进程重启后丢失。
type Registry struct {
	mu          sync.RWMutex
	endpoints   map[model.Source][]model.EndpointCandidate
	lastWorking map[model.Source]string
}

// NewRegistry 创建端点注册表
func NewRegistry(endpoints map[model.Source][]model.EndpointCandidate) *Registry {
	r := &Registry{
		endpoints:   make(map[model.Source][]model.EndpointCandidate),
		lastWorking: make(map[model.Source]string),
	}
	for src, eps := range endpoints {
		r.endpoints[src] = dedupe(eps)
	}
	return r
}

// OrderedEndpoints 返回尝试顺序：最近成功的端点在前，其余按声明顺序
func (r *Registry) OrderedEndpoints(source model.Source) []model.EndpointCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	declared := r.endpoints[source]
	ordered := make([]model.EndpointCandidate, 0, len(declared))

	last := r.lastWorking[source]
	if last != "" {
		for _, ep := range declared {
			if ep.Name == last {
				ordered = append(ordered, ep)
				break
			}
		}
	}
	for _, ep := range declared {
		if ep.Name == last {
			continue
		}
		ordered = append(ordered, ep)
	}
	return ordered
}

// RecordSuccess 将端点提升为该音源的"最近可用"端点
func (r *Registry) RecordSuccess(source model.Source, endpointName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastWorking[source] == endpointName {
		return
	}
	r.lastWorking[source] = endpointName
	logger.Debug("[Registry] 更新最近可用端点",
		logger.String("source", string(source)),
		logger.String("endpoint", endpointName))
}

// LastWorking 返回最近成功的端点名称，没有则为空
func (r *Registry) LastWorking(source model.Source) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastWorking[source]
}

// Replace 替换某个音源的端点列表（配置热加载）
// 如果最近成功的端点仍在新列表中则保留提示，否则清除
func (r *Registry) Replace(source model.Source, endpoints []model.EndpointCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eps := dedupe(endpoints)
	r.endpoints[source] = eps

	last := r.lastWorking[source]
	for _, ep := range eps {
		if ep.Name == last {
			return
		}
	}
	delete(r.lastWorking, source)
}

// Sources 返回已配置端点的音源
func (r *Registry) Sources() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Source, 0, len(r.endpoints))
	for _, src := range model.AllSources {
		if _, ok := r.endpoints[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// dedupe 按名称去重，保留第一次出现的位置
func dedupe(eps []model.EndpointCandidate) []model.EndpointCandidate {
	seen := make(map[string]bool, len(eps))
	out := make([]model.EndpointCandidate, 0, len(eps))
	for _, ep := range eps {
		if seen[ep.Name] {
			continue
		}
		seen[ep.Name] = true
		out = append(out, ep)
	}
	return out
}
