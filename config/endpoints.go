package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/fsnotify/fsnotify"
)

// SourceConfig describes how to reach one remote source.
type SourceConfig struct {
	// Path is appended to an endpoint's base URL. {id} and {quality} are substituted.
	Path string `json:"path"`
	// FallbackQuality is the tier known to return a direct URL instead of a segmented manifest.
	FallbackQuality string                    `json:"fallbackQuality"`
	Endpoints       []model.EndpointCandidate `json:"endpoints"`
}

// EndpointsConfig maps each remote source to its mirrors, in declaration order.
type EndpointsConfig map[model.Source]SourceConfig

// DefaultEndpoints returns the built-in mirror list used when no file is configured.
func DefaultEndpoints() EndpointsConfig {
	return EndpointsConfig{
		model.SourceNetease: {
			Path:            "/song/url/v1?id={id}&level={quality}",
			FallbackQuality: "exhigh",
			Endpoints: []model.EndpointCandidate{
				{Name: "primary", BaseURL: "http://localhost:3000", MaxQuality: "lossless"},
			},
		},
		model.SourceTidal: {
			Path:            "/track/?id={id}&quality={quality}",
			FallbackQuality: "LOSSLESS",
			Endpoints: []model.EndpointCandidate{
				{Name: "mirror-a", BaseURL: "http://localhost:3101", MaxQuality: "HI_RES_LOSSLESS"},
				{Name: "mirror-b", BaseURL: "http://localhost:3102", MaxQuality: "HI_RES_LOSSLESS"},
				{Name: "mirror-c", BaseURL: "http://localhost:3103", MaxQuality: "LOSSLESS"},
			},
		},
		model.SourceQobuz: {
			Path:            "/api/download-music?track_id={id}&quality={quality}",
			FallbackQuality: "6",
			Endpoints: []model.EndpointCandidate{
				{Name: "mirror-a", BaseURL: "http://localhost:3201", MaxQuality: "27"},
			},
		},
	}
}

// LoadEndpoints reads an endpoints file. An empty path yields DefaultEndpoints.
func LoadEndpoints(path string) (EndpointsConfig, error) {
	if path == "" {
		return DefaultEndpoints(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}

	var cfg EndpointsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse endpoints file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks sources are known and each endpoint is usable.
func (c EndpointsConfig) Validate() error {
	for src, sc := range c {
		if _, err := model.ParseSource(string(src)); err != nil {
			return err
		}
		if src == model.PrimaryLocalSource {
			return fmt.Errorf("source %q is resolved locally and takes no endpoints", src)
		}
		if sc.Path == "" {
			return fmt.Errorf("source %q: path is required", src)
		}
		for i, ep := range sc.Endpoints {
			if ep.Name == "" || ep.BaseURL == "" {
				return fmt.Errorf("source %q: endpoint #%d needs name and baseUrl", src, i)
			}
		}
	}
	return nil
}

// WatchEndpoints reloads the endpoints file whenever it is written and passes
// the new configuration to onChange. It blocks until ctx is done.
func WatchEndpoints(ctx context.Context, path string, onChange func(EndpointsConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件，编辑器保存时常常是 rename + create
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce = time.After(200 * time.Millisecond)
			}
		case <-debounce:
			debounce = nil
			cfg, err := LoadEndpoints(path)
			if err != nil {
				logger.Warn("[Config] 端点配置重新加载失败，保留旧配置",
					logger.String("path", path),
					logger.ErrorField(err))
				continue
			}
			logger.Info("[Config] 端点配置已重新加载", logger.String("path", path))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("[Config] 文件监听错误", logger.ErrorField(err))
		}
	}
}
