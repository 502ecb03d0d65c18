package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Bt1QPlayer/model"
)

const endpointsJSON = `{
  "tidal": {
    "path": "/track/?id={id}&quality={quality}",
    "fallbackQuality": "LOSSLESS",
    "endpoints": [
      {"name": "a", "baseUrl": "https://a.test", "maxQuality": "HI_RES_LOSSLESS"},
      {"name": "b", "baseUrl": "https://b.test"}
    ]
  }
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEndpointsDefault(t *testing.T) {
	cfg, err := LoadEndpoints("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default endpoints invalid: %v", err)
	}
	if _, ok := cfg[model.SourceLocal]; ok {
		t.Error("local source must not carry endpoints")
	}
	if len(cfg[model.SourceTidal].Endpoints) == 0 {
		t.Error("tidal has no default endpoints")
	}
}

func TestLoadEndpointsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.json")
	writeFile(t, path, endpointsJSON)

	cfg, err := LoadEndpoints(path)
	if err != nil {
		t.Fatal(err)
	}
	tidal := cfg[model.SourceTidal]
	if tidal.FallbackQuality != "LOSSLESS" || len(tidal.Endpoints) != 2 {
		t.Fatalf("tidal = %+v", tidal)
	}
	if tidal.Endpoints[0].Name != "a" || tidal.Endpoints[1].BaseURL != "https://b.test" {
		t.Errorf("declaration order lost: %+v", tidal.Endpoints)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]EndpointsConfig{
		"unknown source": {
			model.Source("spotify"): {Path: "/x"},
		},
		"local endpoints": {
			model.SourceLocal: {Path: "/x"},
		},
		"missing path": {
			model.SourceTidal: {},
		},
		"missing base url": {
			model.SourceTidal: {Path: "/x", Endpoints: []model.EndpointCandidate{{Name: "a"}}},
		},
	}
	for name, cfg := range tests {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadEndpointsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadEndpoints(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file accepted")
	}

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, "{not json")
	if _, err := LoadEndpoints(bad); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("bad json err = %v", err)
	}
}

func TestWatchEndpointsReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.json")
	writeFile(t, path, endpointsJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan EndpointsConfig, 1)
	done := make(chan error, 1)
	go func() {
		done <- WatchEndpoints(ctx, path, func(cfg EndpointsConfig) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// 等待监听器就绪后再写入
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, strings.Replace(endpointsJSON, `"name": "b"`, `"name": "c"`, 1))

	select {
	case cfg := <-reloaded:
		if got := cfg[model.SourceTidal].Endpoints[1].Name; got != "c" {
			t.Errorf("reloaded endpoint = %q, want c", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
