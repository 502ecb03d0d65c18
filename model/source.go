package model

import "fmt"

// Source 音源标识，封闭集合
type Source string

const (
	SourceLocal   Source = "local"   // 本地曲库（MinIO），URL 在本地同步生成
	SourceNetease Source = "netease" // 网易云音乐 API 镜像
	SourceTidal   Source = "tidal"   // Tidal 代理镜像，高音质返回 DASH manifest
	SourceQobuz   Source = "qobuz"   // Qobuz 代理镜像
)

// PrimaryLocalSource 主本地音源，不走 URL 缓存
const PrimaryLocalSource = SourceLocal

// AllSources 所有支持的音源，按声明顺序
var AllSources = []Source{SourceLocal, SourceNetease, SourceTidal, SourceQobuz}

// ParseSource 解析音源字符串
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source: %q", s)
}

// EndpointCandidate 音源的一个镜像端点
type EndpointCandidate struct {
	Name       string `json:"name"`
	BaseURL    string `json:"baseUrl"`
	MaxQuality string `json:"maxQuality"` // 该端点声明的最高音质档位
}
